package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukex/taskgraph/pkg/eventbus"
	"github.com/dukex/taskgraph/pkg/executor"
	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/registry"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// InstanceLister is implemented by stores that can enumerate their instances.
type InstanceLister interface {
	Instances(ctx context.Context) ([]uuid.UUID, error)
}

// StartRequest names the workflow to run. A set InstanceID continues that
// instance; its workflow defaults to the one recorded in the store.
type StartRequest struct {
	Workflow                string     `json:"workflow"                validate:"required_without=InstanceID"`
	InstanceID              *uuid.UUID `json:"instanceId"`
	MaxParallelism          *int       `json:"maxParallelism"          validate:"omitempty,min=1"`
	FailFast                *bool      `json:"failFast"`
	SkipDependentsOnFailure *bool      `json:"skipDependentsOnFailure"`
}

type WorkflowInfo struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Description string     `json:"description,omitempty"`
	Layers      [][]string `json:"layers"`
}

type InstanceSummary struct {
	InstanceID uuid.UUID             `json:"instanceId"`
	Definition models.DefinitionRef  `json:"definitionRef"`
	Status     models.InstanceStatus `json:"status"`
	UpdatedUTC time.Time             `json:"updatedUtc"`
	Active     bool                  `json:"active"`
}

type RunsOption func(*Runs)

// WithNotifier publishes run and node lifecycle events.
func WithNotifier(n *eventbus.Notifier) RunsOption {
	return func(s *Runs) {
		s.notifier = n
	}
}

func WithTracer(tracer trace.Tracer) RunsOption {
	return func(s *Runs) {
		s.tracer = tracer
	}
}

func WithOwnerID(owner string) RunsOption {
	return func(s *Runs) {
		s.owner = owner
	}
}

func WithLeaseDuration(d time.Duration) RunsOption {
	return func(s *Runs) {
		s.leaseDuration = d
	}
}

// WithDefaultOptions sets the executor options used where a request leaves them unset.
func WithDefaultOptions(opts executor.Options) RunsOption {
	return func(s *Runs) {
		s.defaults = opts
	}
}

// Runs starts registered workflows and tracks the instances running in this
// process, one executor per instance.
type Runs struct {
	registry      *registry.Registry
	store         persistence.Store
	logger        *slog.Logger
	notifier      *eventbus.Notifier
	tracer        trace.Tracer
	owner         string
	leaseDuration time.Duration
	defaults      executor.Options
	validate      *validator.Validate

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
	active map[uuid.UUID]*activeRun

	// instances whose log is being written without a run
	reserved map[uuid.UUID]chan struct{}
}

type activeRun struct {
	ctx      context.Context
	workflow string
	exec     *executor.Executor[string]
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRuns(reg *registry.Registry, store persistence.Store, logger *slog.Logger, opts ...RunsOption) *Runs {
	baseCtx, stop := context.WithCancel(context.Background())

	s := &Runs{
		registry:      reg,
		store:         store,
		logger:        logger.With("module", "runs"),
		leaseDuration: executor.DefaultLeaseDuration,
		defaults:      executor.DefaultOptions(),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		baseCtx:       baseCtx,
		stop:          stop,
		active:        make(map[uuid.UUID]*activeRun),
		reserved:      make(map[uuid.UUID]chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HealthCheck checks the health of the store.
func (s *Runs) HealthCheck(ctx context.Context) (string, bool) {
	err := s.store.HealthCheck(ctx)
	if err != nil {
		return "Store is unhealthy: " + err.Error(), false
	}

	return "Store is healthy", true
}

// Workflows describes every registered workflow.
func (s *Runs) Workflows() ([]WorkflowInfo, error) {
	names := s.registry.Names()
	infos := make([]WorkflowInfo, 0, len(names))

	for _, name := range names {
		entry, _ := s.registry.Lookup(name)

		wf, err := s.registry.Build(name)
		if err != nil {
			return nil, newError("Workflows", uuid.Nil, err)
		}

		layers, err := wf.Layers()
		if err != nil {
			return nil, newError("Workflows", uuid.Nil, err)
		}

		infos = append(infos, WorkflowInfo{
			Name:        name,
			Version:     wf.Version(),
			Description: entry.Description,
			Layers:      layers,
		})
	}

	return infos, nil
}

// Start launches the requested run in the background and returns its instance id.
func (s *Runs) Start(ctx context.Context, req StartRequest) (uuid.UUID, error) {
	id, ar, wf, opts, resumed, err := s.prepare(ctx, s.baseCtx, "Start", req)
	if err != nil {
		return id, err
	}

	go func() {
		defer s.wg.Done()
		defer ar.cancel()

		_, _ = s.execute(ar.ctx, id, ar, wf, opts, resumed)
	}()

	return id, nil
}

// RunSync runs the requested workflow on the calling goroutine until it
// finishes or ctx is done.
func (s *Runs) RunSync(ctx context.Context, req StartRequest) (*executor.Report[string], error) {
	id, ar, wf, opts, resumed, err := s.prepare(ctx, ctx, "RunSync", req)
	if err != nil {
		return nil, err
	}

	defer s.wg.Done()
	defer ar.cancel()

	return s.execute(ar.ctx, id, ar, wf, opts, resumed)
}

// prepare registers the run as active. The returned run holds a context derived
// from parent and counts towards Shutdown.
func (s *Runs) prepare(ctx, parent context.Context, op string, req StartRequest) (
	uuid.UUID, *activeRun, *workflow.Workflow[string], executor.Options, bool, error,
) {
	var (
		id   = uuid.New()
		opts = s.options(req)
	)

	fail := func(err error) (uuid.UUID, *activeRun, *workflow.Workflow[string], executor.Options, bool, error) {
		return id, nil, nil, opts, false, newError(op, id, err)
	}

	err := s.validate.Struct(req)
	if err != nil {
		return fail(errors.Join(ErrInvalidRequest, err))
	}

	err = opts.Validate()
	if err != nil {
		return fail(err)
	}

	name := req.Workflow

	if req.InstanceID != nil {
		id = *req.InstanceID

		if name == "" {
			state, err := s.instance(ctx, id)
			if err != nil {
				return fail(err)
			}

			name = state.Definition.Name
		}
	}

	wf, err := s.registry.Build(name)
	if err != nil {
		return fail(err)
	}

	runCtx, cancel := context.WithCancel(parent)

	ar := &activeRun{
		ctx:      runCtx,
		workflow: name,
		exec:     s.newExecutor(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		cancel()

		return fail(ErrShuttingDown)
	}

	if _, ok := s.active[id]; ok {
		cancel()

		return fail(ErrInstanceActive)
	}

	if _, ok := s.reserved[id]; ok {
		cancel()

		return fail(ErrInstanceActive)
	}

	s.active[id] = ar
	s.wg.Add(1)

	return id, ar, wf, opts, req.InstanceID != nil, nil
}

func (s *Runs) execute(
	ctx context.Context,
	id uuid.UUID,
	ar *activeRun,
	wf *workflow.Workflow[string],
	opts executor.Options,
	resumed bool,
) (*executor.Report[string], error) {
	defer func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()

		close(ar.done)
	}()

	logger := s.logger.With("instance_id", id, "workflow", ar.workflow)

	if s.notifier != nil {
		ar.exec.OnNodeStateChanged(eventbus.NodeListener[string](ctx, s.notifier, ar.workflow))
		s.notifier.RunStarted(ctx, id, wf.Definition(), resumed)
	}

	started := time.Now()

	report, err := ar.exec.Run(ctx, wf, opts, executor.RunParams{InstanceID: &id})
	if err != nil {
		logger.ErrorContext(ctx, "run ended with error", "error", err)
	} else {
		logger.InfoContext(ctx, "run ended", "status", report.Status, "succeeded", report.Succeeded())
	}

	if s.notifier != nil {
		s.notifier.RunFinished(context.WithoutCancel(ctx), eventbus.RunSummary{
			InstanceID:   id,
			Definition:   report.Definition,
			Status:       report.Status,
			Succeeded:    report.Succeeded(),
			WaitingNodes: report.WaitingNodes,
			Cycle:        report.Cycle,
			Err:          err,
			Duration:     time.Since(started),
		})
	}

	if err != nil {
		return report, newError("Run", id, err)
	}

	return report, nil
}

func (s *Runs) newExecutor() *executor.Executor[string] {
	opts := []executor.Option[string]{
		executor.WithStore[string](s.store),
		executor.WithLogger[string](s.logger),
		executor.WithLeaseDuration[string](s.leaseDuration),
	}

	if s.owner != "" {
		opts = append(opts, executor.WithOwnerID[string](s.owner))
	}

	if s.tracer != nil {
		opts = append(opts, executor.WithTracer[string](s.tracer))
	}

	return executor.New(opts...)
}

func (s *Runs) options(req StartRequest) executor.Options {
	opts := s.defaults

	if req.MaxParallelism != nil {
		opts.MaxParallelism = *req.MaxParallelism
	}

	if req.FailFast != nil {
		opts.FailFast = *req.FailFast
	}

	if req.SkipDependentsOnFailure != nil {
		opts.SkipDependentsOnFailure = *req.SkipDependentsOnFailure
	}

	return opts
}

// PostSignal delivers a signal to the instance. It reports true when a run in
// this process took it. Otherwise the signal is appended to the instance log,
// and a suspended instance with a node waiting on key is restarted so the
// signal gets consumed.
func (s *Runs) PostSignal(ctx context.Context, id uuid.UUID, key string, payload json.RawMessage) (bool, error) {
	if key == "" {
		return false, newError("PostSignal", id, executor.ErrEmptySignalKey)
	}

	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	if !json.Valid(payload) {
		return false, newError("PostSignal", id, errors.Join(ErrInvalidRequest, errors.New("payload is not valid JSON")))
	}

	for {
		ar, release, err := s.claim(ctx, id)
		if err != nil {
			return false, newError("PostSignal", id, err)
		}

		if ar == nil {
			err = s.postOffline(ctx, id, key, payload, release)
			if err != nil {
				return false, newError("PostSignal", id, err)
			}

			return false, nil
		}

		delivered, err := s.postActive(ctx, ar, id, key, payload)
		if err != nil {
			return false, newError("PostSignal", id, err)
		}

		if delivered {
			return true, nil
		}
	}
}

// claim returns the active run of id. When there is none it reserves id
// instead, and Start refuses the instance until release is called.
func (s *Runs) claim(ctx context.Context, id uuid.UUID) (*activeRun, func(), error) {
	for {
		s.mu.Lock()

		if ar, ok := s.active[id]; ok {
			s.mu.Unlock()

			return ar, nil, nil
		}

		held, busy := s.reserved[id]
		if !busy {
			released := make(chan struct{})
			s.reserved[id] = released
			s.mu.Unlock()

			return nil, func() {
				s.mu.Lock()
				delete(s.reserved, id)
				s.mu.Unlock()

				close(released)
			}, nil
		}

		s.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// postActive hands the signal to a run of this process once its executor has
// rehydrated. It reports false when the run ended first.
func (s *Runs) postActive(ctx context.Context, ar *activeRun, id uuid.UUID, key string, payload json.RawMessage) (bool, error) {
	err := s.awaitActive(ctx, ar)

	switch {
	case errors.Is(err, ErrNotResumable):
		return false, nil
	case err != nil:
		return false, err
	}

	delivered, err := ar.exec.PostSignal(ctx, id, key, payload)
	if err != nil || delivered {
		return delivered, err
	}

	// The run is finishing; its successor, if any, gets the signal.
	select {
	case <-ar.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// postOffline appends the signal to the log of an instance no run of this
// process holds. release is called once the log and snapshot are written.
func (s *Runs) postOffline(ctx context.Context, id uuid.UUID, key string, payload json.RawMessage, release func()) error {
	state, err := s.appendSignal(ctx, id, key, payload)

	release()

	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "signal stored for inactive instance", "instance_id", id, "signal", key)

	if state.Status == models.InstanceSuspended && waitsFor(state, key) {
		_, err := s.Start(ctx, StartRequest{Workflow: state.Definition.Name, InstanceID: &id})
		if err != nil && !errors.Is(err, ErrInstanceActive) {
			s.logger.WarnContext(ctx, "could not restart instance after signal", "instance_id", id, "error", err)
		}
	}

	return nil
}

func (s *Runs) appendSignal(ctx context.Context, id uuid.UUID, key string, payload json.RawMessage) (*models.InstanceState, error) {
	state, err := s.instance(ctx, id)
	if err != nil {
		return nil, err
	}

	ev := &models.SignalPosted{SignalKey: key, Payload: payload}
	seq := state.LastAppliedEventSequence + 1
	models.Stamp(ev, seq, time.Now().UTC())

	err = s.store.AppendEvent(ctx, id, ev)
	if err != nil {
		return nil, err
	}

	state.Apply(ev)
	state.LastAppliedEventSequence = seq

	err = s.store.SaveSnapshot(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("signal %s logged but snapshot failed: %w", key, err)
	}

	return state, nil
}

func waitsFor(state *models.InstanceState, key string) bool {
	for _, rec := range state.Nodes {
		if rec.State == models.NodeWaitingForInput && rec.WaitingForSignal == key {
			return true
		}
	}

	return false
}

// Resume releases a node waiting for input. An instance that is not running in
// this process is restarted first.
func (s *Runs) Resume(ctx context.Context, id uuid.UUID, node string) error {
	ar, ok := s.lookup(id)
	if !ok {
		state, err := s.instance(ctx, id)
		if err != nil {
			return newError("Resume", id, err)
		}

		rec, found := state.Nodes[node]
		if !found || rec.State != models.NodeWaitingForInput {
			return newError("Resume", id, ErrNotResumable)
		}

		_, err = s.Start(ctx, StartRequest{Workflow: state.Definition.Name, InstanceID: &id})
		if err != nil && !errors.Is(err, ErrInstanceActive) {
			return err
		}

		ar, ok = s.lookup(id)
		if !ok {
			return newError("Resume", id, ErrNotResumable)
		}
	}

	err := s.awaitActive(ctx, ar)
	if err != nil {
		return newError("Resume", id, err)
	}

	err = ar.exec.Resume(node)
	if err != nil {
		return newError("Resume", id, err)
	}

	return nil
}

// awaitActive waits until the executor of ar has rehydrated its instance.
func (s *Runs) awaitActive(ctx context.Context, ar *activeRun) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, ok := ar.exec.ActiveInstanceID(); ok {
			return nil
		}

		select {
		case <-ar.done:
			return ErrNotResumable
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel stops the run of id in this process.
func (s *Runs) Cancel(id uuid.UUID) error {
	ar, ok := s.lookup(id)
	if !ok {
		return newError("Cancel", id, ErrInstanceNotFound)
	}

	ar.cancel()

	return nil
}

// Wait blocks until the run of id in this process ends. It returns at once
// when no such run exists.
func (s *Runs) Wait(ctx context.Context, id uuid.UUID) error {
	ar, ok := s.lookup(id)
	if !ok {
		return nil
	}

	select {
	case <-ar.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Instance returns the materialised state of id.
func (s *Runs) Instance(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	state, err := s.instance(ctx, id)
	if err != nil {
		return nil, newError("Instance", id, err)
	}

	return state, nil
}

func (s *Runs) instance(ctx context.Context, id uuid.UUID) (*models.InstanceState, error) {
	state, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if state.LastAppliedEventSequence == 0 && len(state.Nodes) == 0 {
		return nil, ErrInstanceNotFound
	}

	return state, nil
}

// Events returns the event log of id.
func (s *Runs) Events(ctx context.Context, id uuid.UUID) ([]models.Event, error) {
	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, newError("Events", id, err)
	}

	if len(events) == 0 {
		return nil, newError("Events", id, ErrInstanceNotFound)
	}

	return events, nil
}

// ListInstances summarises every stored instance, most recently updated first.
func (s *Runs) ListInstances(ctx context.Context) ([]InstanceSummary, error) {
	lister, ok := s.store.(InstanceLister)
	if !ok {
		return nil, newError("ListInstances", uuid.Nil, ErrListingUnsupported)
	}

	ids, err := lister.Instances(ctx)
	if err != nil {
		return nil, newError("ListInstances", uuid.Nil, err)
	}

	summaries := make([]InstanceSummary, 0, len(ids))

	for _, id := range ids {
		state, err := s.store.Load(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable instance", "instance_id", id, "error", err)

			continue
		}

		_, active := s.lookup(id)

		summaries = append(summaries, InstanceSummary{
			InstanceID: id,
			Definition: state.Definition,
			Status:     state.Status,
			UpdatedUTC: state.UpdatedUTC,
			Active:     active,
		})
	}

	slices.SortStableFunc(summaries, func(a, b InstanceSummary) int {
		return b.UpdatedUTC.Compare(a.UpdatedUTC)
	})

	return summaries, nil
}

// Active returns the ids of instances running in this process.
func (s *Runs) Active() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	return ids
}

func (s *Runs) lookup(id uuid.UUID) (*activeRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ar, ok := s.active[id]

	return ar, ok
}

// Shutdown cancels background runs and waits for them to record their final
// state, or for ctx to end.
func (s *Runs) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
