// Package remote syncs call recordings from an S3 bucket into the local
// intake directory. Listing is bounded by a lookback window so a bucket with
// years of history stays cheap to scan.
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/store"
)

// ObjectClient is the slice of the S3 API the manager uses.
type ObjectClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Manager lists and downloads recordings from the configured bucket.
type Manager struct {
	client    ObjectClient
	bucket    string
	prefix    string
	intakeDir string
	lookback  time.Duration
	log       *logger.Logger
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Found      int      `json:"found"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Files      []string `json:"files,omitempty"`
}

// BucketStats summarizes the remote bucket contents.
type BucketStats struct {
	TotalFiles  int     `json:"total_files"`
	AudioFiles  int     `json:"audio_files"`
	TotalSizeMB float64 `json:"total_size_mb"`
	Bucket      string  `json:"bucket"`
	Prefix      string  `json:"prefix"`
}

// NewManager creates a Manager backed by a real S3 client.
// Parameters:
//   - cfg: AWS credentials, bucket, prefix, and region.
//   - intakeDir: local directory downloads land in.
//   - lookbackDays: only objects modified within this window are listed.
//   - log: structured logger.
// Returns:
//   - *Manager: initialized manager.
//   - error: when the AWS configuration cannot be assembled.
func NewManager(cfg *config.AWSConfig, intakeDir string, lookbackDays int, log *logger.Logger) (*Manager, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Manager{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		intakeDir: intakeDir,
		lookback:  time.Duration(lookbackDays) * 24 * time.Hour,
		log:       log.WithField(logger.FieldComponent, "remote"),
	}, nil
}

// NewManagerWithClient wires an explicit client, used by tests.
func NewManagerWithClient(client ObjectClient, bucket, prefix, intakeDir string, lookbackDays int, log *logger.Logger) *Manager {
	return &Manager{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		intakeDir: intakeDir,
		lookback:  time.Duration(lookbackDays) * 24 * time.Hour,
		log:       log.WithField(logger.FieldComponent, "remote"),
	}
}

// List returns audio objects modified within the lookback window, newest
// first, up to limit. A limit of 0 means no cap.
func (m *Manager) List(ctx context.Context, limit int) ([]domain.RemoteObject, error) {
	cutoff := time.Now().Add(-m.lookback)

	var objects []domain.RemoteObject
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	}

	for {
		page, err := m.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", m.bucket, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				continue
			}
			if !config.IsSupportedAudioFile(*obj.Key) {
				continue
			}

			ro := domain.RemoteObject{
				Key:      *obj.Key,
				Filename: filepath.Base(*obj.Key),
			}
			if obj.Size != nil {
				ro.Size = *obj.Size
			}
			if obj.LastModified != nil {
				ro.LastModified = *obj.LastModified
			}
			if _, err := os.Stat(filepath.Join(m.intakeDir, ro.Filename)); err == nil {
				ro.Downloaded = true
			}
			objects = append(objects, ro)
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}

	m.log.WithField(logger.FieldCount, len(objects)).Debug("Listed remote recordings")
	return objects, nil
}

// Download fetches one object into the intake directory. An existing local
// file with the same name is left alone and its path returned.
func (m *Manager) Download(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(m.intakeDir, filepath.Base(key))

	if _, err := os.Stat(localPath); err == nil {
		m.log.WithField(logger.FieldFilename, filepath.Base(key)).Debug("File already exists locally, skipping download")
		return localPath, nil
	}

	if err := os.MkdirAll(m.intakeDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create intake directory: %w", err)
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer result.Body.Close()

	// Write to a temp name first so the watcher never sees a partial file.
	tmp, err := os.CreateTemp(m.intakeDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, result.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move %s into place: %w", key, err)
	}

	m.log.WithFields(logger.Fields{
		logger.FieldFilename: filepath.Base(key),
	}).Info("Downloaded recording")
	return localPath, nil
}

// Sync lists remote recordings and downloads the ones not already known:
// present in the intake directory, or recorded in the store. Individual
// download failures are counted, not fatal.
func (m *Manager) Sync(ctx context.Context, st store.Store) (*SyncResult, error) {
	objects, err := m.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Found: len(objects)}
	for _, obj := range objects {
		if obj.Downloaded || m.alreadyProcessed(ctx, st, obj.Filename) {
			result.Skipped++
			continue
		}

		if _, err := m.Download(ctx, obj.Key); err != nil {
			m.log.WithError(err).WithField(logger.FieldFilename, obj.Filename).Error("Failed to download recording")
			result.Failed++
			continue
		}
		result.Downloaded++
		result.Files = append(result.Files, obj.Filename)
	}

	m.log.WithFields(logger.Fields{
		"found":      result.Found,
		"downloaded": result.Downloaded,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("Remote sync complete")
	return result, nil
}

func (m *Manager) alreadyProcessed(ctx context.Context, st store.Store, filename string) bool {
	if st == nil {
		return false
	}
	_, err := st.Get(ctx, filename)
	return err == nil
}

// Stats scans the bucket and reports file counts and total size.
func (m *Manager) Stats(ctx context.Context) (*BucketStats, error) {
	stats := &BucketStats{Bucket: m.bucket, Prefix: m.prefix}

	var totalSize int64
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	}
	for {
		page, err := m.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", m.bucket, err)
		}
		for _, obj := range page.Contents {
			stats.TotalFiles++
			if obj.Size != nil {
				totalSize += *obj.Size
			}
			if obj.Key != nil && config.IsSupportedAudioFile(*obj.Key) {
				stats.AudioFiles++
			}
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	stats.TotalSizeMB = float64(totalSize) / 1024 / 1024
	return stats, nil
}

// Bucket returns the configured bucket name.
func (m *Manager) Bucket() string { return m.bucket }
