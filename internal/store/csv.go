package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jordanw/callscope/internal/domain"
)

// Headers is the CSV column order. It is the dashboard's read contract:
// changes must be additive (new columns appended) so existing readers
// keep working.
var Headers = []string{
	"timestamp",
	"filename",
	"call_date",
	"call_time",
	"call_datetime",
	"phone_number",
	"call_status",
	"agent_name",
	"estimated_duration_seconds",
	"file_size",
	"duration",
	"transcription",
	"diarized_transcription",
	"speaker_count",
	"summary",
	"intent",
	"sub_intent",
	"primary_disposition",
	"secondary_disposition",
	"status",
	"processing_time",
	"error_message",
}

// CSVStore keeps call records in a flat CSV file. All rows live in memory,
// keyed by filename; every mutation rewrites the file to a temp path and
// renames it over the original, so a concurrent reader of the file never
// sees a partial write.
type CSVStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]*domain.CallRecord
}

// OpenCSV opens or creates the CSV store at path.
func OpenCSV(path string) (*CSVStore, error) {
	s := &CSVStore{
		path:    path,
		records: make(map[string]*domain.CallRecord),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec := rowToRecord(row)
		if rec.Filename != "" {
			s.records[rec.Filename] = rec
		}
	}

	return s, nil
}

// Upsert inserts or overwrites the record keyed by filename.
func (s *CSVStore) Upsert(ctx context.Context, rec *domain.CallRecord) error {
	if rec.Filename == "" {
		return fmt.Errorf("record has no filename")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[rec.Filename]
	cp := *rec
	s.records[rec.Filename] = &cp

	if err := s.flushLocked(); err != nil {
		// Roll the in-memory state back so a failed flush does not leave
		// memory and disk out of sync.
		if existed {
			s.records[rec.Filename] = prev
		} else {
			delete(s.records, rec.Filename)
		}
		return err
	}
	return nil
}

// Get returns the record for filename, or ErrNotFound.
func (s *CSVStore) Get(ctx context.Context, filename string) (*domain.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[filename]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns all records, most recent first.
func (s *CSVStore) List(ctx context.Context) ([]domain.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

// Delete removes the record for filename.
func (s *CSVStore) Delete(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[filename]
	if !ok {
		return ErrNotFound
	}
	delete(s.records, filename)

	if err := s.flushLocked(); err != nil {
		s.records[filename] = rec
		return err
	}
	return nil
}

// Search matches query case-insensitively against transcription, summary,
// intent, agent name, and filename.
func (s *CSVStore) Search(ctx context.Context, query string) ([]domain.CallRecord, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CallRecord
	for _, rec := range s.sortedLocked() {
		if strings.Contains(strings.ToLower(rec.Transcription), q) ||
			strings.Contains(strings.ToLower(rec.Summary), q) ||
			strings.Contains(strings.ToLower(rec.Intent), q) ||
			strings.Contains(strings.ToLower(rec.AgentName), q) ||
			strings.Contains(strings.ToLower(rec.Filename), q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *CSVStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close is a no-op for the CSV store; every mutation is already durable.
func (s *CSVStore) Close() error {
	return nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) sortedLocked() []domain.CallRecord {
	out := make([]domain.CallRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// flushLocked rewrites the whole file using stage-then-swap: write a temp
// file in the same directory and rename it over the store file. Rename is
// atomic on the same filesystem, so a crash mid-write leaves the old file
// intact.
func (s *CSVStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".transcriptions-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(Headers); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store header: %w", err)
	}
	for _, rec := range s.sortedLocked() {
		if err := w.Write(RecordRow(&rec)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write store row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// RecordRow renders a record as one CSV row in Headers order. Exported so
// tabular exports elsewhere produce the same column layout as the store file.
func RecordRow(rec *domain.CallRecord) []string {
	return []string{
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Filename,
		rec.CallDate,
		rec.CallTime,
		rec.CallDatetime,
		rec.PhoneNumber,
		rec.CallStatus,
		rec.AgentName,
		strconv.Itoa(rec.EstimatedDurationSeconds),
		strconv.FormatInt(rec.FileSize, 10),
		strconv.FormatFloat(rec.DurationSeconds, 'f', -1, 64),
		rec.Transcription,
		rec.DiarizedTranscription,
		strconv.Itoa(rec.SpeakerCount),
		rec.Summary,
		rec.Intent,
		rec.SubIntent,
		rec.PrimaryDisposition,
		rec.SecondaryDisposition,
		string(rec.Status),
		strconv.FormatFloat(rec.ProcessingTimeSeconds, 'f', -1, 64),
		rec.ErrorMessage,
	}
}

func rowToRecord(row []string) *domain.CallRecord {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	ts, _ := time.Parse(time.RFC3339Nano, get(0))
	estDur, _ := strconv.Atoi(get(8))
	fileSize, _ := strconv.ParseInt(get(9), 10, 64)
	duration, _ := strconv.ParseFloat(get(10), 64)
	speakers, _ := strconv.Atoi(get(13))
	procTime, _ := strconv.ParseFloat(get(20), 64)

	return &domain.CallRecord{
		Timestamp:                ts,
		Filename:                 get(1),
		CallDate:                 get(2),
		CallTime:                 get(3),
		CallDatetime:             get(4),
		PhoneNumber:              get(5),
		CallStatus:               get(6),
		AgentName:                get(7),
		EstimatedDurationSeconds: estDur,
		FileSize:                 fileSize,
		DurationSeconds:          duration,
		Transcription:            get(11),
		DiarizedTranscription:    get(12),
		SpeakerCount:             speakers,
		Summary:                  get(14),
		Intent:                   get(15),
		SubIntent:                get(16),
		PrimaryDisposition:       get(17),
		SecondaryDisposition:     get(18),
		Status:                   domain.RecordStatus(get(19)),
		ProcessingTimeSeconds:    procTime,
		ErrorMessage:             get(21),
	}
}
