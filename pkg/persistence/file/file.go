// Package file provides the file-backed instance store. Each instance lives in
// its own directory holding a JSON snapshot, an append-only JSONL event log and
// a transient lock file.
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/google/uuid"
)

const (
	snapshotFile = "instance.snapshot.json"
	eventsFile   = "instance.events.jsonl"
	lockFile     = ".instance.lock"
)

// Store implements persistence.Store on the local file system.
type Store struct {
	root   string
	logger *slog.Logger
	policy persistence.LockPolicy
	now    func() time.Time
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithLockPolicy(policy persistence.LockPolicy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store rooted at root. A "file://" prefix is accepted.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:   strings.Replace(root, "file://", "", 1),
		logger: slog.Default(),
		policy: persistence.DefaultLockPolicy(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("module", "file_store")

	return s
}

// InstanceDir returns the directory holding the files of instance id.
func (s *Store) InstanceDir(id uuid.UUID) string {
	return filepath.Join(s.root, "workflows", "instances", strings.ReplaceAll(id.String(), "-", ""))
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	var state *models.InstanceState

	err := s.withLock(ctx, "Load", id, func(dir string) error {
		snapshot, err := s.readSnapshot(dir)
		if err != nil {
			return err
		}

		events, err := s.readEvents(ctx, dir)
		if err != nil {
			return err
		}

		state = persistence.Materialize(id, snapshot, events, s.now)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

func (s *Store) AppendEvent(ctx context.Context, id uuid.UUID, event models.Event) error {
	line, err := models.MarshalEvent(event)
	if err != nil {
		return persistence.NewInstanceError("AppendEvent", id, err)
	}

	return s.withLock(ctx, "AppendEvent", id, func(dir string) error {
		// #nosec G304 -- path is built from a validated uuid
		f, err := os.OpenFile(filepath.Join(dir, eventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}

		_, err = f.Write(append(line, '\n'))
		if err != nil {
			_ = f.Close()

			return fmt.Errorf("failed to append event: %w", err)
		}

		err = f.Sync()
		if err != nil {
			_ = f.Close()

			return fmt.Errorf("failed to sync event log: %w", err)
		}

		return f.Close()
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, state *models.InstanceState) error {
	data, err := persistence.EncodeSnapshot(state)
	if err != nil {
		return persistence.NewInstanceError("SaveSnapshot", state.InstanceID, err)
	}

	return s.withLock(ctx, "SaveSnapshot", state.InstanceID, func(dir string) error {
		return writeFileAtomic(filepath.Join(dir, snapshotFile), data, 0600)
	})
}

func (s *Store) Events(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	var events []models.Event

	err := s.withLock(ctx, "Events", id, func(dir string) error {
		var err error

		events, err = s.readEvents(ctx, dir)

		return err
	})

	return events, err
}

// Instances lists the ids of every instance under the root.
func (s *Store) Instances(_ context.Context) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "workflows", "instances"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// HealthCheck verifies the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("file store root unavailable: %w", err)
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) withLock(ctx context.Context, op string, id uuid.UUID, fn func(dir string) error) error {
	if err := persistence.ValidateInstanceID(id); err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	dir := s.InstanceDir(id)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return persistence.NewInstanceError(op, id, fmt.Errorf("failed to create instance directory: %w", err))
	}

	lockPath := filepath.Join(dir, lockFile)

	_, err = persistence.AcquireLock(ctx, s.policy, func() (struct{}, error) {
		return struct{}{}, s.tryLock(lockPath)
	})
	if err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	defer func() {
		if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to release instance lock", "instance_id", id, "error", err)
		}
	}()

	err = fn(dir)
	if err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	return nil
}

func (s *Store) tryLock(path string) error {
	// #nosec G304 -- path is built from a validated uuid
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err == nil {
		_, _ = f.WriteString(strconv.Itoa(os.Getpid()))

		return f.Close()
	}

	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	info, statErr := os.Stat(path)
	if statErr == nil && s.policy.StaleAfter > 0 && s.now().Sub(info.ModTime()) > s.policy.StaleAfter {
		s.logger.Warn("breaking stale instance lock", "path", path, "age", s.now().Sub(info.ModTime()))
		_ = os.Remove(path)
	}

	return persistence.ErrLockHeld
}

func (s *Store) readSnapshot(dir string) (*models.InstanceState, error) {
	// #nosec G304 -- path is built from a validated uuid
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return persistence.DecodeSnapshot(data)
}

func (s *Store) readEvents(ctx context.Context, dir string) ([]models.Event, error) {
	// #nosec G304 -- path is built from a validated uuid
	f, err := os.Open(filepath.Join(dir, eventsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var lines [][]byte

	reader := bufio.NewReader(f)

	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read event log: %w", err)
		}
	}

	return persistence.DecodeEvents(lines, func(line int, err error) {
		if errors.Is(err, models.ErrUnknownEventType) {
			s.logger.DebugContext(ctx, "skipping unknown event", "dir", dir, "line", line, "error", err)

			return
		}

		s.logger.WarnContext(ctx, "skipping malformed event", "dir", dir, "line", line, "error", err)
	}), nil
}

// writeFileAtomic replaces path with data so that readers see either the old
// or the new content, never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}

	tmpName := tmp.Name()
	committed := false

	defer func() {
		_ = tmp.Close()

		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod temp snapshot: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	// #nosec G304 -- dir is the instance directory
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open instance directory: %w", err)
	}
	defer d.Close()

	return d.Sync()
}
