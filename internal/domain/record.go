package domain

import "time"

// RecordStatus represents the processing status of a call record.
// Values include StatusPending, StatusProcessing, StatusCompleted, and StatusFailed.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusProcessing RecordStatus = "processing"
	StatusCompleted  RecordStatus = "completed"
	StatusFailed     RecordStatus = "failed"
)

// CallRecord represents one processed audio file. Filename is the unique key;
// reprocessing updates the existing row rather than appending a duplicate.
type CallRecord struct {
	Filename     string    `gorm:"type:text;primaryKey" json:"filename" csv:"filename"`
	Timestamp    time.Time `gorm:"index:idx_records_timestamp" json:"timestamp" csv:"timestamp"`
	CallDate     string    `gorm:"type:text" json:"call_date,omitempty" csv:"call_date"`
	CallTime     string    `gorm:"type:text" json:"call_time,omitempty" csv:"call_time"`
	CallDatetime string    `gorm:"type:text" json:"call_datetime,omitempty" csv:"call_datetime"`
	PhoneNumber  string    `gorm:"type:text" json:"phone_number,omitempty" csv:"phone_number"`
	CallStatus   string    `gorm:"type:text" json:"call_status,omitempty" csv:"call_status"`
	AgentName    string    `gorm:"type:text" json:"agent_name,omitempty" csv:"agent_name"`

	EstimatedDurationSeconds int     `json:"estimated_duration_seconds" csv:"estimated_duration_seconds"`
	FileSize                 int64   `json:"file_size" csv:"file_size"`
	DurationSeconds          float64 `json:"duration_seconds" csv:"duration"`

	Transcription         string `gorm:"type:text" json:"transcription" csv:"transcription"`
	DiarizedTranscription string `gorm:"type:text" json:"diarized_transcription" csv:"diarized_transcription"`
	SpeakerCount          int    `json:"speaker_count" csv:"speaker_count"`

	Summary              string `gorm:"type:text" json:"summary" csv:"summary"`
	Intent               string `gorm:"type:text;index:idx_records_intent" json:"intent" csv:"intent"`
	SubIntent            string `gorm:"type:text" json:"sub_intent" csv:"sub_intent"`
	PrimaryDisposition   string `gorm:"type:text" json:"primary_disposition" csv:"primary_disposition"`
	SecondaryDisposition string `gorm:"type:text" json:"secondary_disposition" csv:"secondary_disposition"`

	Status                RecordStatus `gorm:"type:text;index:idx_records_status;default:pending" json:"status" csv:"status"`
	ProcessingTimeSeconds float64      `json:"processing_time_seconds" csv:"processing_time"`
	ErrorMessage          string       `gorm:"type:text" json:"error_message" csv:"error_message"`
}

// TableName returns the database table name for CallRecord.
func (CallRecord) TableName() string {
	return "call_records"
}

// IsTerminal reports whether the record has reached a terminal status.
func (r *CallRecord) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// RemoteObject describes an object in the remote recordings bucket.
// It is ephemeral: recomputed on every listing call, never persisted.
type RemoteObject struct {
	Key          string    `json:"key"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Downloaded   bool      `json:"downloaded"`
}

// SizeMB returns the object size in megabytes.
func (o RemoteObject) SizeMB() float64 {
	return float64(o.Size) / 1024 / 1024
}
