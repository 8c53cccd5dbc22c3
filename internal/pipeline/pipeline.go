// Package pipeline drives an audio file from discovery to a stored record:
// transcription, classification, persistence, and archival into the
// processed directory. A fixed worker pool consumes a buffered queue; each
// filename is in flight at most once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jordanw/callscope/internal/adapter"
	"github.com/jordanw/callscope/internal/classify"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/store"
	"github.com/jordanw/callscope/internal/transcribe"
)

// ErrInFlight is returned when a reprocess is requested for a file that is
// currently being processed.
var ErrInFlight = errors.New("file is currently being processed")

// ErrQueueFull is returned when the job queue cannot accept another file.
var ErrQueueFull = errors.New("processing queue is full")

// ErrStopped is returned by Submit after Stop has been called. Late
// submitters during shutdown (watcher stability waits, HTTP uploads) get an
// error instead of a send on a closed channel.
var ErrStopped = errors.New("pipeline is stopped")

// Transcriber converts audio bytes into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (*transcribe.Result, error)
}

// Classifier extracts intent and disposition from a transcript.
type Classifier interface {
	Analyze(ctx context.Context, transcription string) (*classify.Analysis, error)
	ClassifyDisposition(ctx context.Context, transcription, summary string) (*classify.Disposition, error)
}

// Pipeline owns the worker pool and the per-file processing sequence.
type Pipeline struct {
	cfg         *config.ProcessingConfig
	processedDir string
	st          store.Store
	transcriber Transcriber
	classifier  Classifier
	log         *logger.Logger

	jobs chan string

	mu       sync.Mutex
	inFlight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

// New creates a Pipeline. Start must be called before Submit does anything
// useful.
func New(cfg *config.ProcessingConfig, processedDir string, st store.Store, t Transcriber, c Classifier, log *logger.Logger) *Pipeline {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pipeline{
		cfg:          cfg,
		processedDir: processedDir,
		st:           st,
		transcriber:  t,
		classifier:   c,
		log:          log.WithField(logger.FieldComponent, "pipeline"),
		jobs:         make(chan string, queueSize),
		inFlight:     make(map[string]struct{}),
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 3
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.WithField("workers", workers).Info("Processing pipeline started")
}

// Stop closes the queue and waits for in-flight work to finish. Safe to call
// once; Submit calls arriving afterwards return ErrStopped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
}

// Submit queues a file for processing. A file already queued or in flight is
// a no-op. Returns ErrQueueFull when the queue cannot take another job, or
// ErrStopped after Stop.
func (p *Pipeline) Submit(path string) error {
	filename := filepath.Base(path)

	// The send stays under the mutex so Stop cannot close the channel
	// between the closed check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStopped
	}
	if _, busy := p.inFlight[filename]; busy {
		p.log.WithField(logger.FieldFilename, filename).Debug("File already queued, ignoring")
		return nil
	}

	select {
	case p.jobs <- path:
		p.inFlight[filename] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of jobs waiting in the queue.
func (p *Pipeline) QueueDepth() int {
	return len(p.jobs)
}

// InFlight reports whether filename is queued or being processed.
func (p *Pipeline) InFlight(filename string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.inFlight[filename]
	return busy
}

// Reprocess re-runs the full pipeline for an already processed file. The
// audio is restored from the processed directory into its original intake
// location if needed. Returns ErrInFlight if the file is currently queued.
func (p *Pipeline) Reprocess(ctx context.Context, intakeDir, filename string) error {
	if p.InFlight(filename) {
		return ErrInFlight
	}

	rec, err := p.st.Get(ctx, filename)
	if err != nil {
		return err
	}

	intakePath := filepath.Join(intakeDir, filename)
	if _, err := os.Stat(intakePath); os.IsNotExist(err) {
		archived, ok := p.findArchived(filename)
		if !ok {
			return fmt.Errorf("audio for %s not found in processed directory", filename)
		}
		if err := copyFile(archived, intakePath); err != nil {
			return fmt.Errorf("failed to restore %s for reprocessing: %w", filename, err)
		}
	}

	rec.Status = domain.StatusPending
	rec.ErrorMessage = ""
	if err := p.st.Upsert(ctx, rec); err != nil {
		return err
	}

	return p.Submit(intakePath)
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.WithField("worker", id)

	for path := range p.jobs {
		select {
		case <-ctx.Done():
			p.clearInFlight(filepath.Base(path))
			continue
		default:
		}
		p.process(ctx, path, log)
	}
}

// process runs the full sequence for one file. Any step that exhausts its
// retries marks the record failed with the error message; everything else
// ends in a completed record, including degraded classification.
func (p *Pipeline) process(ctx context.Context, path string, log *logger.Logger) {
	filename := filepath.Base(path)
	defer p.clearInFlight(filename)

	start := time.Now()
	log = log.WithField(logger.FieldFilename, filename)
	log.Info("Processing started")

	rec := &domain.CallRecord{
		Filename:  filename,
		Timestamp: time.Now(),
		Status:    domain.StatusProcessing,
	}
	if meta, ok := domain.ParseFilenameMetadata(filename); ok {
		meta.ApplyTo(rec)
	}

	if info, err := os.Stat(path); err == nil {
		rec.FileSize = info.Size()
	}
	p.persist(ctx, rec, log)

	if err := p.run(ctx, path, rec, log); err != nil {
		rec.Status = domain.StatusFailed
		rec.ErrorMessage = err.Error()
		log.WithError(err).Error("Processing failed")
	} else {
		rec.Status = domain.StatusCompleted
		rec.ErrorMessage = ""
	}
	rec.ProcessingTimeSeconds = time.Since(start).Seconds()
	p.persist(ctx, rec, log)

	if rec.Status == domain.StatusCompleted {
		if err := p.archive(path); err != nil {
			log.WithError(err).Warn("Failed to move file to processed directory")
		}
		log.WithFields(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			"intent":               rec.Intent,
		}).Info("Processing completed")
	}
}

// run performs transcription and classification, mutating rec in place.
func (p *Pipeline) run(ctx context.Context, path string, rec *domain.CallRecord, log *logger.Logger) error {
	maxBytes := int64(p.cfg.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && rec.FileSize > maxBytes {
		return fmt.Errorf("file size %d bytes exceeds limit of %d MB", rec.FileSize, p.cfg.MaxFileSizeMB)
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	var tr *transcribe.Result
	err = p.withRetry(ctx, func() error {
		var terr error
		tr, terr = p.transcriber.Transcribe(ctx, audio, rec.Filename)
		return terr
	})
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	rec.Transcription = tr.Transcript
	rec.DiarizedTranscription = tr.DiarizedTranscript
	rec.SpeakerCount = tr.SpeakerCount
	rec.DurationSeconds = tr.DurationSeconds
	p.persist(ctx, rec, log)

	if strings.TrimSpace(rec.Transcription) == "" {
		rec.Summary = "No transcription available for analysis"
		rec.Intent = "OTHER"
		rec.SubIntent = "GENERAL_INQUIRY"
		return nil
	}

	var analysis *classify.Analysis
	err = p.withRetry(ctx, func() error {
		var aerr error
		analysis, aerr = p.classifier.Analyze(ctx, rec.Transcription)
		return aerr
	})
	if err != nil {
		// Classification is best effort: the transcript is already in
		// hand, so degrade instead of failing the whole file.
		log.WithError(err).Warn("Intent classification failed, using defaults")
		rec.Summary = "AI analysis failed"
		rec.Intent = "OTHER"
		rec.SubIntent = "GENERAL_INQUIRY"
		return nil
	}

	switch analysis.State {
	case classify.FullyParsed:
		rec.Summary = analysis.Summary
		rec.Intent = analysis.Intent
		rec.SubIntent = analysis.SubIntent
	case classify.PartiallyParsed:
		rec.Summary = analysis.Summary
		rec.Intent = analysis.Intent
		rec.SubIntent = analysis.SubIntent
		log.WithField("parse_state", analysis.State.String()).Warn("Classification output partially recovered")
	default:
		rec.Summary = analysis.Summary
		rec.Intent = "OTHER"
		rec.SubIntent = "UNKNOWN"
		log.Warn("Classification output unparsable, using defaults")
	}

	var disp *classify.Disposition
	err = p.withRetry(ctx, func() error {
		var derr error
		disp, derr = p.classifier.ClassifyDisposition(ctx, rec.Transcription, rec.Summary)
		return derr
	})
	if err != nil {
		log.WithError(err).Warn("Disposition classification failed")
		rec.PrimaryDisposition = "ERROR"
		rec.SecondaryDisposition = "API_ERROR"
		return nil
	}
	rec.PrimaryDisposition = disp.Primary
	rec.SecondaryDisposition = disp.Secondary

	return nil
}

// withRetry runs op under the configured retry policy. Fatal adapter errors
// stop immediately; retryable ones back off up to MaxRetries attempts.
func (p *Pipeline) withRetry(ctx context.Context, op func() error) error {
	delay := p.cfg.RetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	maxRetries := p.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxRetries-1)),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !adapter.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// persist upserts with a small bounded retry so a transient store error does
// not lose a finished transcription.
func (p *Pipeline) persist(ctx context.Context, rec *domain.CallRecord, log *logger.Logger) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = p.st.Upsert(ctx, rec); err == nil {
			return
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
	log.WithError(err).Error("Failed to persist record")
}

// archive moves the file into the processed directory, appending _1, _2, ...
// when a file with the same name is already archived.
func (p *Pipeline) archive(path string) error {
	if err := os.MkdirAll(p.processedDir, 0o755); err != nil {
		return err
	}

	filename := filepath.Base(path)
	target := filepath.Join(p.processedDir, filename)

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(p.processedDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}

	if err := os.Rename(path, target); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy and delete.
	if err := copyFile(path, target); err != nil {
		return err
	}
	return os.Remove(path)
}

// findArchived locates the archived copy of filename, accounting for the
// _N collision suffixes archive may have added.
func (p *Pipeline) findArchived(filename string) (string, bool) {
	direct := filepath.Join(p.processedDir, filename)
	if _, err := os.Stat(direct); err == nil {
		return direct, true
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	matches, err := filepath.Glob(filepath.Join(p.processedDir, stem+"_*"+ext))
	if err != nil {
		return "", false
	}
	// Only accept the numeric suffixes archive writes; a sibling like
	// call_other.mp3 also matches the glob for call.mp3.
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), stem+"_"), ext)
		if isDigits(suffix) {
			return m, true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (p *Pipeline) clearInFlight(filename string) {
	p.mu.Lock()
	delete(p.inFlight, filename)
	p.mu.Unlock()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
