package archive

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/pantrylabs/pantrypoints/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds archive manager configuration.
type Config struct {
	Enabled    bool
	Interval   time.Duration
	Passphrase string
	S3         S3Config
}

// State represents the archive manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current archive manager status.
type Status struct {
	State   State      `json:"state"`
	LastRun *time.Time `json:"last_run,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the archive state changes.
type StatusCallback func(Status)

// Manager periodically snapshots the ledger database, encrypts the snapshot,
// and uploads it to S3-compatible storage. The snapshot is taken with VACUUM
// INTO so it is a consistent standalone database even while writers are
// active.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db        *sql.DB
	store     *store.ArchiveStore
	client    s3Client
	logger    *slog.Logger
	retryBase time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new archive manager. The manager stays disabled when
// S3 credentials or the passphrase are missing.
func NewManager(cfg Config, db *sql.DB, as *store.ArchiveStore, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		db:        db,
		store:     as,
		callback:  callback,
		logger:    logger,
		retryBase: time.Second,
		status:    Status{State: StateDisabled},
	}

	if cfg.Enabled && cfg.Passphrase != "" && cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager is configured to run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled archive loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return
	}
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled archive failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the archive manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current archive status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// RunNow snapshots, encrypts, and uploads the ledger immediately. It returns
// the archive run's record id.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("archive not configured")
	}

	m.setStatus(Status{State: StateRunning})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	objectKey := fmt.Sprintf("ledger/snapshot-%s.db.enc", timestamp)

	runID, err := m.store.RecordStart(objectKey)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("record archive start: %w", err)
	}

	encrypted, err := m.snapshot(ctx, runID, passphrase)
	if err != nil {
		m.store.MarkFailure(runID, err.Error())
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, err
	}

	// Object storage hiccups are common enough to be worth a few retries
	// before declaring the run failed.
	backoff := retry.WithMaxRetries(3, retry.NewExponential(m.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(objectKey),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(int64(len(encrypted))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.store.MarkFailure(runID, err.Error())
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("upload snapshot: %w", err)
	}

	if err := m.store.MarkSuccess(runID, int64(len(encrypted))); err != nil {
		return 0, fmt.Errorf("record archive success: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastRun: &now})
	m.logger.Info("archive uploaded", "key", objectKey, "bytes", len(encrypted))

	return runID, nil
}

// snapshot writes a consistent copy of the database to a temp file via
// VACUUM INTO, reads it back, and encrypts it.
func (m *Manager) snapshot(ctx context.Context, runID int64, passphrase string) ([]byte, error) {
	snapPath := filepath.Join(os.TempDir(), fmt.Sprintf("pantrypoints-archive-%d.db", runID))
	defer os.Remove(snapPath)

	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(snapPath)

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapPath); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}

	plaintext, err := os.ReadFile(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	encrypted, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}
	return encrypted, nil
}
