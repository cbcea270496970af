// Package backup ships encrypted snapshots of the ledger database to
// S3-compatible storage. The ledger is the source of truth for which cookies
// are spent; losing it would let every cookie be redeemed again.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/owenwright/cookies/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	// Hour is the UTC hour of the daily snapshot.
	Hour int
	// Keep is how many snapshots to retain; older ones are pruned.
	Keep int
}

// Manager runs scheduled encrypted snapshots.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	stores *store.BackupStore
	logger *slog.Logger
	client s3Client

	lastRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = 14
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		stores: bs,
		logger: logger.With("component", "backup"),
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
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

// Enabled reports whether snapshots are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the snapshot loop.
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

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.Hour {
		return
	}
	m.mu.RLock()
	ranToday := m.lastRun.Year() == now.Year() && m.lastRun.YearDay() == now.YearDay()
	m.mu.RUnlock()
	if ranToday {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
		return
	}
	m.mu.Lock()
	m.lastRun = now
	m.mu.Unlock()
}

// RunNow takes a snapshot immediately: a consistent copy via VACUUM INTO,
// encrypted, uploaded, recorded, and old snapshots pruned.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return "", fmt.Errorf("backup not configured")
	}

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("cookies-snapshot-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	// VACUUM INTO writes a consistent copy without blocking writers.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase, salt)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("snapshots/cookies-%s-%d.db.enc",
		time.Now().UTC().Format("2006-01-02T150405Z"), time.Now().UnixNano()%1e6)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(encrypted),
		ContentLength: aws.Int64(int64(len(encrypted))),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	if _, err := m.stores.Record(objectKey, int64(len(encrypted))); err != nil {
		return "", fmt.Errorf("record snapshot: %w", err)
	}

	m.logger.Info("snapshot uploaded", "key", objectKey, "size", len(encrypted))

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("prune snapshots", "error", err)
	}
	return objectKey, nil
}

func (m *Manager) prune(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	keep := m.cfg.Keep
	m.mu.RUnlock()

	stale, err := m.stores.PruneOlderThan(keep)
	if err != nil {
		return err
	}
	for _, key := range stale {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete stale snapshot", "key", key, "error", err)
		}
	}
	return nil
}

// Fetch downloads and decrypts one snapshot for restore tooling.
func (m *Manager) Fetch(ctx context.Context, objectKey string) ([]byte, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("backup not configured")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	return Decrypt(buf.Bytes(), m.cfg.Passphrase)
}

// ParseHour converts a configured hour string to a valid UTC hour,
// defaulting to 3.
func ParseHour(s string) int {
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 3
	}
	return h
}
