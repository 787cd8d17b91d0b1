// Package postgresql provides the PostgreSQL instance store. Snapshots and
// events live in two tables; per-instance exclusivity comes from transaction
// scoped advisory locks.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/persistence/sqlbase"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store implements persistence.Store for PostgreSQL.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	policy persistence.LockPolicy
	now    func() time.Time
}

// NewStore connects to databaseURL and runs the schema migrations.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     database,
		logger: logger.With("module", "postgres_store"),
		policy: persistence.DefaultLockPolicy(),
		now:    time.Now,
	}

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// SetLockPolicy overrides the default retry budget for contended instances.
func (s *Store) SetLockPolicy(policy persistence.LockPolicy) {
	s.policy = policy
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	var state *models.InstanceState

	err := s.withInstance(ctx, "Load", id, func(tx *sql.Tx) error {
		var (
			snapshot *models.InstanceState
			document []byte
		)

		err := tx.QueryRowContext(ctx,
			`SELECT document FROM instance_snapshots WHERE instance_id = $1`, id,
		).Scan(&document)

		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to query snapshot: %w", err)
		default:
			snapshot, err = persistence.DecodeSnapshot(document)
			if err != nil {
				return err
			}
		}

		after := int64(0)
		if snapshot != nil {
			after = snapshot.LastAppliedEventSequence
		}

		events, err := s.queryEvents(ctx, tx, id, after)
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
	document, err := models.MarshalEvent(event)
	if err != nil {
		return persistence.NewInstanceError("AppendEvent", id, err)
	}

	return s.withInstance(ctx, "AppendEvent", id, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO instance_events (instance_id, sequence, type, utc_timestamp, document)
			VALUES ($1, $2, $3, $4, $5)`,
			id, event.GetSequence(), string(event.GetType()), event.GetTimestamp(), document,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		return nil
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, state *models.InstanceState) error {
	document, err := persistence.EncodeSnapshot(state)
	if err != nil {
		return persistence.NewInstanceError("SaveSnapshot", state.InstanceID, err)
	}

	return s.withInstance(ctx, "SaveSnapshot", state.InstanceID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO instance_snapshots (
				instance_id, definition_name, definition_version, status,
				last_sequence, document, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (instance_id) DO UPDATE SET
				definition_name = EXCLUDED.definition_name,
				definition_version = EXCLUDED.definition_version,
				status = EXCLUDED.status,
				last_sequence = EXCLUDED.last_sequence,
				document = EXCLUDED.document,
				updated_at = EXCLUDED.updated_at`,
			state.InstanceID, state.Definition.Name, state.Definition.Version, string(state.Status),
			state.LastAppliedEventSequence, document, state.CreatedUTC, state.UpdatedUTC,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}

		return nil
	})
}

func (s *Store) Events(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	var events []models.Event

	err := s.withInstance(ctx, "Events", id, func(tx *sql.Tx) error {
		var err error

		events, err = s.queryEvents(ctx, tx, id, 0)

		return err
	})

	return events, err
}

// Instances lists the ids of stored instances, most recently updated first.
func (s *Store) Instances(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id FROM instance_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID

		err := rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// withInstance runs fn in a transaction holding the advisory lock of id.
func (s *Store) withInstance(ctx context.Context, op string, id uuid.UUID, fn func(tx *sql.Tx) error) error {
	if err := persistence.ValidateInstanceID(id); err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	tx, err := persistence.AcquireLock(ctx, s.policy, func() (*sql.Tx, error) {
		return s.tryLock(ctx, id)
	})
	if err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewInstanceError(op, id, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewInstanceError(op, id, fmt.Errorf("failed to commit: %w", err))
	}

	return nil
}

func (s *Store) tryLock(ctx context.Context, id uuid.UUID) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var locked bool

	err = tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, id.String()).Scan(&locked)
	if err != nil {
		_ = tx.Rollback()

		return nil, fmt.Errorf("failed to take advisory lock: %w", err)
	}

	if !locked {
		_ = tx.Rollback()

		return nil, persistence.ErrLockHeld
	}

	return tx, nil
}

func (s *Store) queryEvents(ctx context.Context, tx *sql.Tx, id uuid.UUID, after int64) ([]models.Event, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT document FROM instance_events
		WHERE instance_id = $1 AND sequence > $2
		ORDER BY sequence`, id, after)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var lines [][]byte

	for rows.Next() {
		var document []byte

		err := rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		lines = append(lines, document)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return persistence.DecodeEvents(lines, func(_ int, err error) {
		s.logger.WarnContext(ctx, "skipping undecodable event", "instance_id", id, "error", err)
	}), nil
}
