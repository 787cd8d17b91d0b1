// Package executor drives workflow instances. A single control loop decides
// every transition, node bodies run in goroutines bounded by the run's
// parallelism, and each decision is appended to the instance log and
// snapshotted before the loop moves on.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukex/taskgraph/pkg/graph"
	"github.com/dukex/taskgraph/pkg/models"
	"github.com/dukex/taskgraph/pkg/otelhelper"
	"github.com/dukex/taskgraph/pkg/persistence"
	"github.com/dukex/taskgraph/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errFailFast = errors.New("run canceled after node failure")

// Executor runs one workflow instance at a time.
type Executor[K comparable] struct {
	store         persistence.Store
	codec         persistence.KeyCodec[K]
	logger        *slog.Logger
	tracer        trace.Tracer
	owner         string
	leaseDuration time.Duration
	now           func() time.Time

	listenersMu sync.RWMutex
	listeners   []func(NodeStateChange[K])

	mu     sync.Mutex
	busy   bool
	active *run[K]
}

func New[K comparable](opts ...Option[K]) *Executor[K] {
	e := &Executor[K]{
		codec:         sprintCodec[K]{},
		logger:        slog.Default(),
		tracer:        otelhelper.DefaultTracer(),
		owner:         defaultOwner(),
		leaseDuration: DefaultLeaseDuration,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "executor")

	return e
}

// OnNodeStateChanged registers a listener. Listeners are called from the
// control loop, in decision order, once the transition is durable. They may
// call back into the executor.
func (e *Executor[K]) OnNodeStateChanged(fn func(NodeStateChange[K])) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	e.listeners = append(e.listeners, fn)
}

// OwnerID is the identity written into the leases of running nodes.
func (e *Executor[K]) OwnerID() string {
	return e.owner
}

func (e *Executor[K]) ActiveInstanceID() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return uuid.Nil, false
	}

	return e.active.id, true
}

// ActiveContext returns the context of the active run, or nil when idle.
func (e *Executor[K]) ActiveContext() *workflow.Context {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil
	}

	return e.active.wctx
}

// Run drives the instance named by params until no node can make progress.
// The report is never nil. Nodes left waiting for input suspend the instance;
// a later Run with the same instance id picks it up where it stopped.
func (e *Executor[K]) Run(ctx context.Context, wf *workflow.Workflow[K], opts Options, params RunParams) (*Report[K], error) {
	id := uuid.New()
	if params.InstanceID != nil {
		id = *params.InstanceID
	}

	r := e.newRun(id, wf, opts)

	err := opts.Validate()
	if err != nil {
		return r.report(), err
	}

	if cycle, found := graph.FindCycle(wf.Graph()); found {
		e.logger.WarnContext(ctx, "workflow contains a cycle, nothing executed",
			"workflow", wf.Name(), "cycle", fmt.Sprint(cycle))

		report := r.report()
		report.Cycle = cycle

		return report, nil
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()

		return r.report(), ErrRunInProgress
	}

	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.active = nil
		e.mu.Unlock()
	}()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "taskgraph.run",
		attribute.String(otelhelper.InstanceIDKey, id.String()),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name()),
		attribute.String(otelhelper.WorkflowVersionKey, wf.Version()),
		attribute.String(otelhelper.OwnerIDKey, e.owner),
	)
	defer span.End()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r.cancel = cancel

	// Decisions taken after the caller gave up must still reach the store.
	persistCtx := context.WithoutCancel(ctx)

	err = e.rehydrate(persistCtx, r, params.Definition)
	if err != nil {
		otelhelper.SetError(span, err)

		return r.report(), err
	}

	e.logger.InfoContext(ctx, "run started",
		"instance_id", id, "workflow", wf.Name(), "version", wf.Version(), "owner", e.owner)

	e.flush(persistCtx, r, true)

	e.mu.Lock()
	e.active = r
	e.mu.Unlock()

	if r.fatal == nil {
		e.loop(runCtx, persistCtx, r)
	}

	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()

	e.flush(persistCtx, r, false)

	report := r.report()

	span.SetAttributes(attribute.String(otelhelper.InstanceStatusKey, string(report.Status)))
	e.logger.InfoContext(ctx, "run finished",
		"instance_id", id, "workflow", wf.Name(), "status", report.Status, "waiting", report.WaitingCount())

	switch {
	case r.fatal != nil:
		otelhelper.SetError(span, r.fatal)

		return report, r.fatal
	case ctx.Err() != nil:
		otelhelper.SetError(span, ctx.Err())

		return report, ctx.Err()
	default:
		return report, nil
	}
}

// PostSignal queues a signal for the active run of instanceID. It reports
// false when that instance is not running on this executor. The signal is
// durable once the control loop flushes it, which happens before any node
// consumes it.
func (e *Executor[K]) PostSignal(ctx context.Context, instanceID uuid.UUID, key string, payload json.RawMessage) (bool, error) {
	if key == "" {
		return false, ErrEmptySignalKey
	}

	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	if !json.Valid(payload) {
		return false, fmt.Errorf("payload of signal %s is not valid JSON", key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.active
	if r == nil || r.id != instanceID {
		return false, nil
	}

	r.signals[key] = append(r.signals[key], slices.Clone(payload))
	r.outbox = append(r.outbox, &models.SignalPosted{SignalKey: key, Payload: slices.Clone(payload)})
	r.notify()

	e.logger.DebugContext(ctx, "signal posted", "instance_id", instanceID, "signal", key)

	return true, nil
}

// TryResume moves a node waiting for input back to pending. It reports false
// when there is no active run, the node is not waiting, or one of its
// dependencies is unresolved.
func (e *Executor[K]) TryResume(id K) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.active
	if r == nil {
		return false
	}

	node, err := r.wf.Node(id)
	if err != nil {
		return false
	}

	return r.resume(node.ID, "resumed")
}

func (e *Executor[K]) Resume(id K) error {
	if !e.TryResume(id) {
		return fmt.Errorf("%w: %v", ErrNotResumable, id)
	}

	return nil
}

// ResumeAllWaiting resumes every resumable waiting node and returns how many were resumed.
func (e *Executor[K]) ResumeAllWaiting() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.active
	if r == nil {
		return 0
	}

	n := 0

	for _, id := range r.order {
		if r.resume(id, "resumed") {
			n++
		}
	}

	return n
}

func (e *Executor[K]) newRun(id uuid.UUID, wf *workflow.Workflow[K], opts Options) *run[K] {
	nodes := wf.Nodes()

	r := &run[K]{
		id:        id,
		wf:        wf,
		opts:      opts,
		wctx:      workflow.NewContext(),
		cancel:    func(error) {},
		order:     make([]K, 0, len(nodes)),
		nodes:     make(map[K]*workflow.Node[K], len(nodes)),
		encoded:   make(map[K]string, len(nodes)),
		byEncoded: make(map[string]K, len(nodes)),
		states:    make(map[K]models.NodeState, len(nodes)),
		messages:  make(map[K]string, len(nodes)),
		waitKeys:  make(map[K]string),
		remaining: make(map[K]int, len(nodes)),
		signals:   make(map[string][]json.RawMessage),
		consuming: make(map[string]K),
		wake:      make(chan struct{}, 1),
		results:   make(chan result[K], max(1, min(opts.MaxParallelism, len(nodes)))),
	}

	r.definition = wf.Definition()

	for _, node := range nodes {
		enc := e.codec.Encode(node.ID)

		r.order = append(r.order, node.ID)
		r.nodes[node.ID] = node
		r.encoded[node.ID] = enc
		r.byEncoded[enc] = node.ID
		r.states[node.ID] = models.NodePending
	}

	return r
}

// rehydrate loads the durable state of the instance and derives the in-memory
// scheduling state from it.
func (e *Executor[K]) rehydrate(ctx context.Context, r *run[K], definition *models.DefinitionRef) error {
	state := models.NewInstanceState(r.id, e.now())

	if e.store != nil {
		loaded, err := e.store.Load(ctx, r.id)
		if err != nil {
			return fmt.Errorf("failed to load instance %s: %w", r.id, err)
		}

		state = loaded
	}

	switch {
	case definition != nil:
		state.Definition = *definition
	case state.Definition == models.UnknownDefinition || state.Definition.Name == "":
		state.Definition = r.wf.Definition()
	}

	r.definition = state.Definition

	recovered, leased := state.RecoverExpiredLeases(e.owner, e.now())
	if len(leased) > 0 {
		slices.Sort(leased)

		return &LeasedError{Nodes: leased}
	}

	r.state = state
	r.seq = state.LastAppliedEventSequence

	slices.Sort(recovered)

	for _, enc := range recovered {
		r.outbox = append(r.outbox, &models.NodeStateChanged{
			NodeID:  enc,
			State:   models.NodePending,
			Message: "recovered from expired lease",
		})
	}

	for enc := range state.Nodes {
		if _, ok := r.byEncoded[enc]; ok {
			continue
		}

		id, err := e.codec.Decode(enc)
		if err != nil {
			e.logger.WarnContext(ctx, "snapshot holds an undecodable node id", "instance_id", r.id, "node", enc, "error", err)

			continue
		}

		e.logger.WarnContext(ctx, "snapshot holds a node unknown to the workflow", "instance_id", r.id, "node", fmt.Sprint(id))
	}

	r.wctx.Restore(state.Context)

	for key, queue := range state.PendingSignals {
		r.signals[key] = slices.Clone(queue)
	}

	for _, id := range r.order {
		enc := r.encoded[id]

		rec, ok := state.Nodes[enc]
		if !ok {
			state.Node(enc)

			continue
		}

		switch rec.State {
		case models.NodeCanceled, models.NodeSkipped:
			// Canceled and skipped only describe the attempt that produced
			// them; a new attempt evaluates the node again.
			r.transition(id, models.NodePending, "rescheduled", nil)
		case models.NodeWaitingForInput:
			r.states[id] = rec.State
			r.messages[id] = rec.Message

			r.waitKeys[id] = rec.WaitingForSignal
			if r.waitKeys[id] == "" {
				r.waitKeys[id] = r.signalKey(id)
			}
		default:
			r.states[id] = rec.State
			r.messages[id] = rec.Message
		}
	}

	for _, id := range r.order {
		deps, _ := r.wf.Dependencies(id)

		n := 0

		for _, dep := range deps {
			if r.states[dep].Unresolved() {
				n++
			}
		}

		r.remaining[id] = n

		if n == 0 && r.states[id] == models.NodePending {
			r.ready = append(r.ready, id)
		}
	}

	return nil
}

func (e *Executor[K]) loop(ctx, persistCtx context.Context, r *run[K]) {
	for {
		e.drainSignals(r)

		launches := e.schedule(ctx, r)

		e.flush(persistCtx, r, false)

		if r.fatal != nil {
			e.mu.Lock()
			r.running -= len(launches)
			e.mu.Unlock()
		} else {
			for _, id := range launches {
				e.launch(ctx, r, id)
			}
		}

		e.mu.Lock()
		running, ready, waiting, canceled := r.running, len(r.ready), r.waiting(), r.canceled
		e.mu.Unlock()

		if running == 0 {
			if r.fatal != nil || canceled {
				return
			}

			// Cancellation seen after scheduling: the next pass cancels the
			// pending nodes and records it before the loop exits.
			if ctx.Err() != nil {
				continue
			}

			if ready > 0 {
				continue
			}

			if waiting == 0 {
				return
			}

			// Suspended: only a signal, a resume or cancellation moves the run on.
			select {
			case <-r.wake:
			case <-ctx.Done():
			}

			continue
		}

		done := ctx.Done()
		if canceled {
			done = nil
		}

		select {
		case res := <-r.results:
			e.handleResult(r, res)
		case <-r.wake:
		case <-done:
		}
	}
}

// schedule dequeues ready nodes up to the parallelism bound and returns the
// ones to launch once their running transition is durable.
func (e *Executor[K]) schedule(ctx context.Context, r *run[K]) []K {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil || r.fatal != nil {
		r.cancelPending()

		return nil
	}

	var launches []K

	for r.running < r.opts.MaxParallelism && len(r.ready) > 0 {
		id := r.ready[0]
		r.ready = r.ready[1:]

		if r.states[id] != models.NodePending {
			continue
		}

		if r.blocked(id) {
			if r.opts.SkipDependentsOnFailure {
				r.transition(id, models.NodeSkipped, "skipped: a dependency did not succeed", nil)
				r.release(id)
			}

			continue
		}

		r.transition(id, models.NodeRunning, "", models.NewLease(e.owner, e.now(), e.leaseDuration))
		r.running++

		launches = append(launches, id)
	}

	return launches
}

func (e *Executor[K]) launch(ctx context.Context, r *run[K], id K) {
	node := r.nodes[id]

	go func() {
		nodeCtx, span := otelhelper.StartSpan(ctx, e.tracer, "taskgraph.node",
			attribute.String(otelhelper.InstanceIDKey, r.id.String()),
			attribute.String(otelhelper.NodeIDKey, r.encoded[id]),
		)
		defer span.End()

		res := result[K]{id: id}

		defer func() {
			if p := recover(); p != nil {
				res.result = workflow.Failure
				res.err = fmt.Errorf("%w: %v", ErrNodePanic, p)
			}

			if res.err != nil {
				otelhelper.SetError(span, res.err)
			}

			r.results <- res
		}()

		res.result, res.err = node.Run(nodeCtx, r.wctx)
	}()
}

func (e *Executor[K]) handleResult(r *run[K], res result[K]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r.running--

	// Values written by the node are logged ahead of its completion.
	e.captureContext(r)

	id := res.id

	for key, consumer := range r.consuming {
		if consumer == id {
			delete(r.consuming, key)
		}
	}

	switch {
	case res.err != nil && (errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)):
		r.transition(id, models.NodeCanceled, res.err.Error(), nil)
		r.release(id)
	case res.err != nil:
		e.fail(r, id, res.err.Error())
	case res.result == workflow.Success:
		r.transition(id, models.NodeSucceeded, "", nil)
		r.release(id)
	case res.result == workflow.WaitingForInput:
		r.transition(id, models.NodeWaitingForInput, "waiting for signal "+r.signalKey(id), nil)
	default:
		e.fail(r, id, "node reported failure")
	}
}

func (e *Executor[K]) fail(r *run[K], id K, msg string) {
	r.transition(id, models.NodeFailed, msg, nil)
	r.release(id)

	e.logger.Warn("node failed", "instance_id", r.id, "node", r.encoded[id], "error", msg)

	if r.opts.FailFast {
		r.cancel(errFailFast)
		r.cancelPending()
	}
}

// drainSignals hands queued signals to the nodes waiting on them, first
// waiting node in insertion order first. A key hands out its next payload only
// after the node released by the previous one has finished, since both read
// the same context entry.
func (e *Executor[K]) drainSignals(r *run[K]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.canceled || len(r.signals) == 0 {
		return
	}

	for _, id := range r.order {
		if r.states[id] != models.NodeWaitingForInput || r.remaining[id] != 0 {
			continue
		}

		key := r.waitKeys[id]

		if _, busy := r.consuming[key]; busy {
			continue
		}

		queue := r.signals[key]
		if len(queue) == 0 {
			continue
		}

		if len(queue) == 1 {
			delete(r.signals, key)
		} else {
			r.signals[key] = queue[1:]
		}

		r.outbox = append(r.outbox, &models.SignalConsumed{SignalKey: key, NodeID: r.encoded[id]})
		r.wctx.Set(workflow.SignalContextKey(key), queue[0])
		e.captureContext(r)
		r.resume(id, "resumed by signal "+key)
		r.consuming[key] = id
	}
}

func (e *Executor[K]) captureContext(r *run[K]) {
	changes, err := r.wctx.TakeChanges()
	if err != nil {
		e.logger.Warn("context values could not be encoded", "instance_id", r.id, "error", err)
	}

	for _, key := range slices.Sorted(maps.Keys(changes)) {
		r.outbox = append(r.outbox, &models.ContextSet{Key: key, Value: changes[key]})
	}
}

// flush makes the queued decisions durable, then tells the listeners. It runs
// on the control loop only. A persistence fault is recorded as fatal and
// cancels the run.
func (e *Executor[K]) flush(ctx context.Context, r *run[K], force bool) {
	if r.fatal != nil {
		return
	}

	e.mu.Lock()
	batch := r.outbox
	r.outbox = nil
	e.mu.Unlock()

	if len(batch) == 0 && !force {
		return
	}

	for _, ev := range batch {
		err := e.appendEvent(ctx, r, ev)
		if err != nil {
			e.abort(ctx, r, err)

			return
		}
	}

	if status := r.durableStatus(); status != r.state.Status {
		err := e.appendEvent(ctx, r, &models.InstanceStatusChanged{Status: status})
		if err != nil {
			e.abort(ctx, r, err)

			return
		}

		e.logger.InfoContext(ctx, "instance status changed", "instance_id", r.id, "status", status)
	}

	values, err := r.wctx.Export()
	if err != nil {
		e.logger.WarnContext(ctx, "context could not be exported to the snapshot", "instance_id", r.id, "error", err)
	} else {
		r.state.Context = values
	}

	r.state.Definition = r.definition

	if e.store != nil {
		err := e.store.SaveSnapshot(ctx, r.state)
		if err != nil {
			e.abort(ctx, r, fmt.Errorf("failed to save snapshot: %w", err))

			return
		}
	}

	for _, ev := range batch {
		changed, ok := ev.(*models.NodeStateChanged)
		if !ok {
			continue
		}

		id, ok := r.byEncoded[changed.NodeID]
		if !ok {
			continue
		}

		e.emit(NodeStateChange[K]{
			InstanceID: r.id,
			NodeID:     id,
			State:      changed.State,
			Message:    changed.Message,
			Sequence:   changed.Sequence,
			At:         changed.UTCTimestamp,
		})
	}
}

func (e *Executor[K]) appendEvent(ctx context.Context, r *run[K], ev models.Event) error {
	models.Stamp(ev, r.seq+1, e.now())

	if e.store != nil {
		err := e.store.AppendEvent(ctx, r.id, ev)
		if err != nil {
			return fmt.Errorf("failed to append %s event: %w", ev.GetType(), err)
		}
	}

	r.seq++
	r.state.Apply(ev)
	r.state.LastAppliedEventSequence = r.seq

	return nil
}

func (e *Executor[K]) abort(ctx context.Context, r *run[K], err error) {
	e.logger.ErrorContext(ctx, "run aborted on persistence failure", "instance_id", r.id, "error", err)

	r.fatal = err
	r.cancel(err)
}

func (e *Executor[K]) emit(change NodeStateChange[K]) {
	e.listenersMu.RLock()
	listeners := slices.Clone(e.listeners)
	e.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("node state listener panicked", "instance_id", change.InstanceID, "panic", p)
				}
			}()

			fn(change)
		}()
	}
}

type result[K comparable] struct {
	id     K
	result workflow.Result
	err    error
}

// run holds the state of one Run call. Fields above the marker are guarded by
// Executor.mu; the rest belong to the control loop.
type run[K comparable] struct {
	id         uuid.UUID
	wf         *workflow.Workflow[K]
	opts       Options
	wctx       *workflow.Context
	cancel     context.CancelCauseFunc
	definition models.DefinitionRef

	order     []K
	nodes     map[K]*workflow.Node[K]
	encoded   map[K]string
	byEncoded map[string]K

	states    map[K]models.NodeState
	messages  map[K]string
	waitKeys  map[K]string
	remaining map[K]int
	ready     []K
	signals   map[string][]json.RawMessage
	consuming map[string]K
	outbox    []models.Event
	running   int
	canceled  bool

	wake    chan struct{}
	results chan result[K]

	// control loop only
	state *models.InstanceState
	seq   int64
	fatal error
}

func (r *run[K]) transition(id K, state models.NodeState, msg string, lease *models.Lease) {
	r.states[id] = state
	r.messages[id] = msg

	ev := &models.NodeStateChanged{
		NodeID:  r.encoded[id],
		State:   state,
		Message: msg,
		Lease:   lease,
	}

	if state == models.NodeWaitingForInput {
		key := r.signalKey(id)
		r.waitKeys[id] = key
		ev.WaitingForSignal = key
	} else {
		delete(r.waitKeys, id)
	}

	r.outbox = append(r.outbox, ev)
}

// release resolves id for its dependents and queues those left without
// unresolved dependencies.
func (r *run[K]) release(id K) {
	dependents, _ := r.wf.Dependents(id)

	for _, dep := range dependents {
		r.remaining[dep]--

		if r.remaining[dep] == 0 && r.states[dep] == models.NodePending {
			r.ready = append(r.ready, dep)
		}
	}
}

func (r *run[K]) blocked(id K) bool {
	deps, _ := r.wf.Dependencies(id)

	for _, dep := range deps {
		if r.states[dep].Blocking() {
			return true
		}
	}

	return false
}

func (r *run[K]) resume(id K, msg string) bool {
	if r.canceled || r.states[id] != models.NodeWaitingForInput || r.remaining[id] != 0 {
		return false
	}

	r.transition(id, models.NodePending, msg, nil)
	r.ready = append(r.ready, id)
	r.notify()

	return true
}

func (r *run[K]) cancelPending() {
	if r.canceled {
		return
	}

	r.canceled = true
	r.ready = nil

	for _, id := range r.order {
		if r.states[id] == models.NodePending {
			r.transition(id, models.NodeCanceled, "canceled before start", nil)
		}
	}
}

func (r *run[K]) signalKey(id K) string {
	if node := r.nodes[id]; node != nil && node.SignalKey != "" {
		return node.SignalKey
	}

	return r.encoded[id]
}

func (r *run[K]) waiting() int {
	n := 0

	for _, s := range r.states {
		if s == models.NodeWaitingForInput {
			n++
		}
	}

	return n
}

func (r *run[K]) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *run[K]) durableStatus() models.InstanceStatus {
	states := make([]models.NodeState, 0, len(r.order))

	for _, id := range r.order {
		if rec, ok := r.state.Nodes[r.encoded[id]]; ok {
			states = append(states, rec.State)
		}
	}

	return models.StatusOf(states)
}

func (r *run[K]) report() *Report[K] {
	report := &Report[K]{
		InstanceID: r.id,
		Definition: r.definition,
		NodeStates: maps.Clone(r.states),
		Messages:   make(map[K]string, len(r.messages)),
	}

	states := make([]models.NodeState, 0, len(r.order))

	for _, id := range r.order {
		states = append(states, r.states[id])

		if msg := r.messages[id]; msg != "" {
			report.Messages[id] = msg
		}

		if r.states[id] == models.NodeWaitingForInput {
			report.WaitingNodes = append(report.WaitingNodes, id)
		}
	}

	report.Status = models.StatusOf(states)

	return report
}

// sprintCodec encodes keys with fmt and can only decode string keys. Executors
// with other key types persist correctly with it but need WithKeyCodec to
// report unknown snapshot entries by id.
type sprintCodec[K comparable] struct{}

func (sprintCodec[K]) Encode(key K) string {
	return fmt.Sprint(key)
}

func (sprintCodec[K]) Decode(value string) (K, error) {
	if key, ok := any(value).(K); ok {
		return key, nil
	}

	var zero K

	return zero, fmt.Errorf("no key codec to decode node id %q", value)
}
