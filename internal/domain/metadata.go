package domain

import (
	"regexp"
	"strconv"
	"time"
)

// Dialer exports name recordings as
// YYYYMMDD_HHMMSSXXmXXs_PHONE_STATUS_AGENT.<ext>.
var filenamePattern = regexp.MustCompile(`^(\d{8})_(\d{6})(\d+)m(\d+)s_([^_]+)_([^_]+)_(.+)\.`)

// FilenameMetadata holds call metadata parsed out of a recording filename.
type FilenameMetadata struct {
	CallDate                 string
	CallTime                 string
	CallDatetime             string
	PhoneNumber              string
	CallStatus               string
	AgentName                string
	EstimatedDurationSeconds int
}

// ParseFilenameMetadata extracts call metadata from a recording filename.
// Filenames that do not match the dialer pattern yield a zero value and
// ok=false; the record is still processable without the metadata.
func ParseFilenameMetadata(filename string) (FilenameMetadata, bool) {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return FilenameMetadata{}, false
	}

	callDate, err := time.Parse("20060102", m[1])
	if err != nil {
		return FilenameMetadata{}, false
	}
	callTime, err := time.Parse("150405", m[2])
	if err != nil {
		return FilenameMetadata{}, false
	}

	mins, _ := strconv.Atoi(m[3])
	secs, _ := strconv.Atoi(m[4])

	dt := time.Date(callDate.Year(), callDate.Month(), callDate.Day(),
		callTime.Hour(), callTime.Minute(), callTime.Second(), 0, time.UTC)

	return FilenameMetadata{
		CallDate:                 callDate.Format("2006-01-02"),
		CallTime:                 callTime.Format("15:04:05"),
		CallDatetime:             dt.Format(time.RFC3339),
		PhoneNumber:              m[5],
		CallStatus:               m[6],
		AgentName:                m[7],
		EstimatedDurationSeconds: mins*60 + secs,
	}, true
}

// ApplyTo copies the parsed metadata onto a call record.
func (m FilenameMetadata) ApplyTo(rec *CallRecord) {
	rec.CallDate = m.CallDate
	rec.CallTime = m.CallTime
	rec.CallDatetime = m.CallDatetime
	rec.PhoneNumber = m.PhoneNumber
	rec.CallStatus = m.CallStatus
	rec.AgentName = m.AgentName
	rec.EstimatedDurationSeconds = m.EstimatedDurationSeconds
}
