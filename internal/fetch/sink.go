package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/logger"
)

const (
	accessTimeLayout = "2006-01-02 15:04:05"
	lockRetryDelay   = 50 * time.Millisecond
)

// AccessFailure describes a profile page that could not be read.
type AccessFailure struct {
	Time     time.Time
	URL      string
	Username string
	Region   string
	Reason   string
}

// Line renders the failure in the flat log format "timestamp | url | username | region".
func (a AccessFailure) Line() string {
	return fmt.Sprintf("%s | %s | %s | %s", a.Time.Format(accessTimeLayout), a.URL, a.Username, a.Region)
}

// AccessFailureSink receives profile access failures for later manual review.
type AccessFailureSink interface {
	Record(ctx context.Context, failure AccessFailure) error
}

// NopSink drops every failure.
type NopSink struct{}

func (NopSink) Record(context.Context, AccessFailure) error { return nil }

// FileSink logs failures on a dedicated logger channel and appends them to a
// flat file. Appends are serialized within the process and, through a lock
// file next to the log, across processes.
type FileSink struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
	lock   *flock.Flock
}

func NewFileSink(path string, log *zap.Logger) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating access log directory: %w", err)
		}
	}

	return &FileSink{
		path:   path,
		logger: logger.AccessFailures(log),
		lock:   flock.New(path + ".lock"),
	}, nil
}

func (s *FileSink) Record(ctx context.Context, failure AccessFailure) error {
	s.logger.Info(fmt.Sprintf("%s | %s | %s", failure.URL, failure.Username, failure.Region),
		zap.String("reason", failure.Reason),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking access log: %w", err)
	}
	if !locked {
		return fmt.Errorf("locking access log: lock not acquired")
	}
	defer s.lock.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening access log: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, failure.Line()); err != nil {
		return fmt.Errorf("writing access log: %w", err)
	}
	return nil
}
