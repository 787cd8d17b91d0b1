// Package redis implements the instance store on Redis. Snapshots are plain
// string keys, the event log is a list and the instance lock is a SET NX key
// with an expiry, so a crashed holder cannot block an instance forever.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	store := redis.New(client)
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "taskgraph:"

// instancesKey is the set tracking every stored instance id.
const instancesKey = keyPrefix + "instances"

func instanceKey(id uuid.UUID, suffix string) string {
	return keyPrefix + "instance:" + strings.ReplaceAll(id.String(), "-", "") + ":" + suffix
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithLockPolicy(policy persistence.LockPolicy) Option {
	return func(s *Store) { s.policy = policy }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements persistence.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
	policy persistence.LockPolicy
	now    func() time.Time
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
		policy: persistence.DefaultLockPolicy(),
		now:    time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	s.logger = s.logger.With("module", "redis_store")

	return s
}

// NewFromURL parses a redis:// URL and creates a store owning its client.
func NewFromURL(databaseURL string, opts ...Option) (*Store, error) {
	options, err := goredis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("taskgraph/redis: parse url: %w", err)
	}

	return New(goredis.NewClient(options), opts...), nil
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	var state *models.InstanceState

	err := s.withLock(ctx, "Load", id, func() error {
		var snapshot *models.InstanceState

		data, err := s.client.Get(ctx, instanceKey(id, "snapshot")).Bytes()

		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return fmt.Errorf("taskgraph/redis: get snapshot: %w", err)
		default:
			snapshot, err = persistence.DecodeSnapshot(data)
			if err != nil {
				return err
			}
		}

		events, err := s.readEvents(ctx, id)
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
	data, err := models.MarshalEvent(event)
	if err != nil {
		return persistence.NewInstanceError("AppendEvent", id, err)
	}

	return s.withLock(ctx, "AppendEvent", id, func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, instanceKey(id, "events"), data)
			pipe.SAdd(ctx, instancesKey, id.String())

			return nil
		})
		if err != nil {
			return fmt.Errorf("taskgraph/redis: append event: %w", err)
		}

		return nil
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, state *models.InstanceState) error {
	data, err := persistence.EncodeSnapshot(state)
	if err != nil {
		return persistence.NewInstanceError("SaveSnapshot", state.InstanceID, err)
	}

	return s.withLock(ctx, "SaveSnapshot", state.InstanceID, func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, instanceKey(state.InstanceID, "snapshot"), data, 0)
			pipe.SAdd(ctx, instancesKey, state.InstanceID.String())

			return nil
		})
		if err != nil {
			return fmt.Errorf("taskgraph/redis: save snapshot: %w", err)
		}

		return nil
	})
}

func (s *Store) Events(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	var events []models.Event

	err := s.withLock(ctx, "Events", id, func() error {
		var err error

		events, err = s.readEvents(ctx, id)

		return err
	})

	return events, err
}

// Instances lists the ids of every stored instance.
func (s *Store) Instances(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, instancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("taskgraph/redis: list instances: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// HealthCheck verifies the Redis connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client when the store owns one.
func (s *Store) Close(_ context.Context) error {
	if c, ok := s.client.(*goredis.Client); ok {
		return c.Close()
	}

	return nil
}

func (s *Store) withLock(ctx context.Context, op string, id uuid.UUID, fn func() error) error {
	if err := persistence.ValidateInstanceID(id); err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	key := instanceKey(id, "lock")
	token := uuid.NewString()

	ttl := s.policy.StaleAfter
	if ttl <= 0 {
		ttl = time.Minute
	}

	_, err := persistence.AcquireLock(ctx, s.policy, func() (struct{}, error) {
		ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return struct{}{}, fmt.Errorf("taskgraph/redis: acquire lock: %w", err)
		}

		if !ok {
			return struct{}{}, persistence.ErrLockHeld
		}

		return struct{}{}, nil
	})
	if err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	defer func() {
		err := releaseScript.Run(context.WithoutCancel(ctx), s.client, []string{key}, token).Err()
		if err != nil {
			s.logger.Warn("failed to release instance lock", "instance_id", id, "error", err)
		}
	}()

	err = fn()
	if err != nil {
		return persistence.NewInstanceError(op, id, err)
	}

	return nil
}

func (s *Store) readEvents(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	raw, err := s.client.LRange(ctx, instanceKey(id, "events"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("taskgraph/redis: read events: %w", err)
	}

	lines := make([][]byte, len(raw))
	for i, r := range raw {
		lines[i] = []byte(r)
	}

	return persistence.DecodeEvents(lines, func(line int, err error) {
		s.logger.WarnContext(ctx, "skipping undecodable event", "instance_id", id, "index", line-1, "error", err)
	}), nil
}
