// Package registry manages the set of live interview sessions. It maps
// session ids to orchestrators, serializes all access per session, and
// hydrates state from the store on first access.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/greenroom/internal/adapters/mq/queue"
	"github.com/okian/greenroom/internal/adapters/store"
	"github.com/okian/greenroom/internal/bus"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/orchestrator"
	"github.com/okian/greenroom/pkg/logger"
	"github.com/okian/greenroom/pkg/metrics"
)

// Factory builds an orchestrator for a hydrated session state. The registry
// stays ignorant of collaborator wiring; the service supplies it.
type Factory func(state *model.SessionState) *orchestrator.Orchestrator

// Registry owns the id to orchestrator map. Operations on different sessions
// proceed concurrently; operations on the same session are mutually
// exclusive.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	resident int

	store   store.Store
	factory Factory
	saves   queue.Queue
	events  *bus.Bus
	log     logger.Logger
}

// entry is the per-session lock plus the live orchestrator, nil when the
// session is not resident.
type entry struct {
	mu   sync.Mutex
	orch *orchestrator.Orchestrator
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithSaveQueue enables write-behind persistence: after every mutating
// operation a snapshot is enqueued for the background save workers.
func WithSaveQueue(q queue.Queue) Option {
	return func(r *Registry) {
		r.saves = q
	}
}

// WithBus sets the event bus notified of session creation.
func WithBus(b *bus.Bus) Option {
	return func(r *Registry) {
		r.events = b
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a registry over the given store and orchestrator factory.
func New(s store.Store, factory Factory, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		store:   s,
		factory: factory,
		log:     logger.Get().Named("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start creates the session, or reconfigures it when it already exists.
// Reconfiguration replaces the config wholesale and resets the conversation.
func (r *Registry) Start(ctx context.Context, id string, cfg model.SessionConfig) error {
	if id == "" {
		return fmt.Errorf("start session: %w", store.ErrInvalidID)
	}

	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	existed := e.orch != nil
	if !existed {
		if err := r.hydrate(ctx, e, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		existed = e.orch != nil
	}

	// New sessions are shed while the save pipeline is saturated. Existing
	// sessions are unaffected; their saves fall back to the synchronous path.
	if !existed && r.saturated() {
		return fmt.Errorf("start session %q: %w", id, ErrBackpressure)
	}

	// Starting an existing session reconfigures it: the config is replaced
	// wholesale and the conversation begins anew.
	r.setResident(e, r.factory(model.NewSessionState(id, cfg)))
	if existed {
		r.log.Info(ctx, "session reconfigured", logger.String("session_id", id))
	} else {
		r.log.Info(ctx, "session created", logger.String("session_id", id))
	}

	metrics.RecordSessionStarted()
	if r.events != nil {
		r.events.Publish(ctx, bus.Event{
			Kind:   bus.SessionStarted,
			Source: "registry",
			Payload: map[string]any{
				"session_id": id,
				"role_title": cfg.RoleTitle,
			},
		})
	}
	r.enqueueSave(ctx, id, e.orch.Snapshot())
	return nil
}

// With runs fn with exclusive access to the session's orchestrator,
// hydrating from the store when the session is not resident. A successful fn
// is followed by a write-behind snapshot enqueue.
func (r *Registry) With(ctx context.Context, id string, fn func(*orchestrator.Orchestrator) error) error {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.orch == nil {
		if err := r.hydrate(ctx, e, id); err != nil {
			return err
		}
	}

	if err := fn(e.orch); err != nil {
		return err
	}
	r.enqueueSave(ctx, id, e.orch.Snapshot())
	return nil
}

// Release persists the session synchronously and evicts it from memory. The
// session stays resident when the save fails, so no acknowledged turn is
// lost. Releasing an unknown or already released id is a no-op.
func (r *Registry) Release(ctx context.Context, id string) error {
	e := r.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.orch == nil {
		return nil
	}

	snap := e.orch.Snapshot()
	if err := r.store.Save(ctx, id, snap); err != nil {
		metrics.RecordSaveError()
		return fmt.Errorf("release session %q: %w", id, err)
	}
	metrics.RecordSaveCompleted()
	r.setResident(e, nil)
	r.log.Info(ctx, "session released", logger.String("session_id", id))
	return nil
}

// ReleaseAll persists and evicts every resident session. Used at shutdown.
// The first save failure is returned after attempting the rest.
func (r *Registry) ReleaseAll(ctx context.Context) error {
	var firstErr error
	for _, id := range r.knownIDs() {
		if err := r.Release(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResidentCount returns the number of sessions currently held in memory.
func (r *Registry) ResidentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resident
}

// entryFor returns the per-session entry, creating the lock slot on first
// reference. Entries are never removed from the map; eviction clears the
// orchestrator only, so a waiter holding a stale entry rehydrates safely.
func (r *Registry) entryFor(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

// hydrate loads the session state from the store into e. Caller holds e.mu.
func (r *Registry) hydrate(ctx context.Context, e *entry, id string) error {
	state, err := r.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("load session %q: %w", id, err)
	}
	r.setResident(e, r.factory(&state))
	r.log.Debug(ctx, "session hydrated from store",
		logger.String("session_id", id),
		logger.String("phase", string(state.Phase)),
	)
	return nil
}

// saturated reports whether the write-behind queue has no room left.
func (r *Registry) saturated() bool {
	return r.saves != nil && r.saves.Len() >= r.saves.Cap()
}

// enqueueSave hands a snapshot to the write-behind queue, falling back to a
// synchronous save under backpressure so acknowledged turns are never lost.
func (r *Registry) enqueueSave(ctx context.Context, id string, snap model.SessionState) {
	if r.saves == nil {
		return
	}
	if r.saves.Enqueue(ctx, queue.Job{SessionID: id, State: snap}) {
		return
	}
	r.log.Warn(ctx, "save queue full, persisting synchronously",
		logger.String("session_id", id),
	)
	if err := r.store.Save(ctx, id, snap); err != nil {
		metrics.RecordSaveError()
		r.log.Error(ctx, "synchronous save failed",
			logger.String("session_id", id),
			logger.Error(err),
		)
		return
	}
	metrics.RecordSaveCompleted()
}

// setResident swaps the entry's orchestrator and keeps the resident counter
// and gauge in step. Caller holds e.mu.
func (r *Registry) setResident(e *entry, orch *orchestrator.Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.orch != nil {
		r.resident--
	}
	if orch != nil {
		r.resident++
	}
	e.orch = orch
	metrics.UpdateActiveSessions(r.resident)
}

func (r *Registry) knownIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
