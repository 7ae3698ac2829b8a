// Package service provides the core business service that implements the
// dependencies required by the HTTP API. It wires the registry, the
// collaborator decorators, the write-behind save pipeline and the event bus
// into one startable unit.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/greenroom/internal/adapters/mq/queue"
	"github.com/okian/greenroom/internal/adapters/mq/worker"
	"github.com/okian/greenroom/internal/adapters/search"
	"github.com/okian/greenroom/internal/adapters/store"
	"github.com/okian/greenroom/internal/agents"
	"github.com/okian/greenroom/internal/bus"
	"github.com/okian/greenroom/internal/domain/dedupe"
	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/internal/domain/types"
	"github.com/okian/greenroom/internal/orchestrator"
	"github.com/okian/greenroom/internal/registry"
	"github.com/okian/greenroom/pkg/logger"
	"github.com/okian/greenroom/pkg/metrics"
)

const retryBackoff = 200 * time.Millisecond

// Service implements the API dependencies for the interview system.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions  *registry.Registry
	store     store.Store
	saveQueue queue.Queue
	savePool  *worker.Pool
	deduper   dedupe.Deduper
	events    *bus.Bus

	// Collaborators; replaced by options, decorated at Start.
	policy    agents.Policy
	evaluator agents.Evaluator
	searcher  search.Searcher

	// Configuration
	saveWorkers      int
	saveQueueSize    int
	dedupeSize       int
	agentConcurrency int
	agentTimeout     time.Duration
	agentMinLatency  time.Duration
	agentMaxLatency  time.Duration
	searchWidth      int
	searchTimeout    time.Duration
	targetQuestions  int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the session persistence backend.
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithPolicy sets the interview policy collaborator.
func WithPolicy(p agents.Policy) Option {
	return func(svc *Service) {
		if p != nil {
			svc.policy = p
		}
	}
}

// WithEvaluator sets the evaluator collaborator.
func WithEvaluator(e agents.Evaluator) Option {
	return func(svc *Service) {
		if e != nil {
			svc.evaluator = e
		}
	}
}

// WithSearcher sets the learning-resource searcher.
func WithSearcher(s search.Searcher) Option {
	return func(svc *Service) {
		if s != nil {
			svc.searcher = s
		}
	}
}

// WithBus sets the event bus. Useful for subscribing external observers
// before the service starts publishing.
func WithBus(b *bus.Bus) Option {
	return func(svc *Service) {
		if b != nil {
			svc.events = b
		}
	}
}

// WithSaveWorkers sets the number of background save workers.
func WithSaveWorkers(count int) Option {
	return func(svc *Service) {
		if count > 0 {
			svc.saveWorkers = count
		}
	}
}

// WithSaveQueueSize bounds the write-behind snapshot queue.
func WithSaveQueueSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.saveQueueSize = size
		}
	}
}

// WithDedupeSize sets the size of the request idempotency cache.
func WithDedupeSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.dedupeSize = size
		}
	}
}

// WithAgentConcurrency caps in-flight collaborator calls across sessions.
func WithAgentConcurrency(limit int) Option {
	return func(svc *Service) {
		if limit > 0 {
			svc.agentConcurrency = limit
		}
	}
}

// WithAgentTimeout bounds one collaborator call.
func WithAgentTimeout(d time.Duration) Option {
	return func(svc *Service) {
		if d > 0 {
			svc.agentTimeout = d
		}
	}
}

// WithAgentLatencyRange sets the simulated latency for the scripted agents.
func WithAgentLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(svc *Service) {
		if minLatency > 0 && maxLatency > minLatency {
			svc.agentMinLatency = minLatency
			svc.agentMaxLatency = maxLatency
		}
	}
}

// WithSearchFanout configures the resource lookup fanout.
func WithSearchFanout(width int, timeout time.Duration) Option {
	return func(svc *Service) {
		if width > 0 {
			svc.searchWidth = width
		}
		if timeout > 0 {
			svc.searchTimeout = timeout
		}
	}
}

// WithTargetQuestions sets the default question count for sessions that do
// not configure one.
func WithTargetQuestions(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.targetQuestions = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		saveWorkers:      runtime.NumCPU(),
		saveQueueSize:    1024,
		dedupeSize:       10_000,
		agentConcurrency: 8,
		agentTimeout:     15 * time.Second,
		searchWidth:      4,
		searchTimeout:    5 * time.Second,
		targetQuestions:  5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting interview service...")

	if s.store == nil {
		s.store = store.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory session store")
	}
	if s.policy == nil {
		s.policy = agents.NewScriptedPolicy(
			agents.WithLatencyRange(s.agentMinLatency, s.agentMaxLatency),
		)
	}
	if s.evaluator == nil {
		s.evaluator = agents.NewScriptedEvaluator(
			agents.WithLatencyRange(s.agentMinLatency, s.agentMaxLatency),
		)
	}
	if s.searcher == nil {
		s.searcher = search.NewStaticSearcher()
	}

	s.deduper = dedupe.NewInMemory(dedupe.WithMaxSize(s.dedupeSize))
	if s.events == nil {
		s.events = bus.New()
	}
	s.subscribeAudit()

	s.saveQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.saveQueueSize))
	s.savePool = worker.NewPool(s.saveWorkers, s.saveQueue, s.store)
	s.savePool.Start(ctx)

	gate := agents.NewGate(int64(s.agentConcurrency), s.agentTimeout)
	policy := agents.NewGatedPolicy(
		agents.NewRetryingPolicy(s.policy, retryBackoff), gate)
	evaluator := agents.NewGatedEvaluator(
		agents.NewRetryingEvaluator(s.evaluator, retryBackoff), gate)
	fanout := search.NewFanout(s.searcher,
		search.WithWidth(s.searchWidth),
		search.WithTimeout(s.searchTimeout),
	)

	factory := func(state *model.SessionState) *orchestrator.Orchestrator {
		return orchestrator.New(state, policy, evaluator,
			orchestrator.WithBus(s.events),
			orchestrator.WithFanout(fanout),
		)
	}
	s.sessions = registry.New(s.store, factory,
		registry.WithSaveQueue(s.saveQueue),
		registry.WithBus(s.events),
	)

	s.started = true
	s.logger.Info(ctx, "interview service started",
		logger.Int("save_workers", s.saveWorkers),
		logger.Int("save_queue_size", s.saveQueueSize),
		logger.Int("agent_concurrency", s.agentConcurrency),
	)
	return nil
}

// Stop gracefully shuts down the service: resident sessions are persisted,
// then the save pipeline drains.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping interview service...")

	if s.sessions != nil {
		if err := s.sessions.ReleaseAll(ctx); err != nil {
			s.logger.Error(ctx, "releasing sessions at shutdown", logger.Error(err))
		}
	}
	if s.savePool != nil {
		s.savePool.Stop(ctx)
	}

	s.started = false
	s.logger.Info(ctx, "interview service stopped")
}

// StartSession creates or reconfigures the session. A zero target question
// count is filled from the service default.
func (s *Service) StartSession(ctx context.Context, id string, cfg model.SessionConfig) error {
	if cfg.TargetQuestions == 0 {
		cfg.TargetQuestions = s.targetQuestions
	}
	if cfg.Style == "" {
		cfg.Style = model.StyleMixed
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = model.DifficultyMedium
	}
	return s.sessions.Start(ctx, id, cfg)
}

// Message runs one interview cycle for the candidate's message. When
// requestID was already processed for this session the call is acknowledged
// as a duplicate without running the pipeline. The duplicate check runs
// after session resolution, so a replay against an unknown session is still
// reported as not found.
func (s *Service) Message(ctx context.Context, id, content, requestID string) (types.Turn, bool, error) {
	// Dedupe keys are scoped per session; the same request id on another
	// session is a distinct request.
	key := id + "/" + requestID

	var reply model.Turn
	var duplicate bool
	err := s.sessions.With(ctx, id, func(o *orchestrator.Orchestrator) error {
		if requestID != "" && s.deduper.SeenAndRecord(ctx, key) {
			duplicate = true
			metrics.RecordDuplicateRequest()
			s.logger.Debug(ctx, "duplicate request acknowledged",
				logger.String("session_id", id),
				logger.String("request_id", requestID),
			)
			return nil
		}
		var err error
		reply, err = o.ProcessMessage(ctx, content)
		if err != nil && requestID != "" {
			// The request did not take effect; let the client retry it.
			s.deduper.Unrecord(ctx, key)
		}
		return err
	})
	if err != nil {
		return types.Turn{}, false, err
	}
	return reply, duplicate, nil
}

// EndSession concludes the interview and returns the final summary.
func (s *Service) EndSession(ctx context.Context, id string) (types.Summary, error) {
	var summary model.Summary
	err := s.sessions.With(ctx, id, func(o *orchestrator.Orchestrator) error {
		var err error
		summary, err = o.EndInterview(ctx)
		return err
	})
	return summary, err
}

// ResetSession wipes the conversation, keeping id and configuration.
func (s *Service) ResetSession(ctx context.Context, id string) error {
	return s.sessions.With(ctx, id, func(o *orchestrator.Orchestrator) error {
		o.Reset(ctx)
		return nil
	})
}

// History returns the full ordered turn sequence of the session.
func (s *Service) History(ctx context.Context, id string) ([]types.Turn, error) {
	var turns []model.Turn
	err := s.sessions.With(ctx, id, func(o *orchestrator.Orchestrator) error {
		turns = o.History()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// SessionStats returns the counter projection of the session.
func (s *Service) SessionStats(ctx context.Context, id string) (types.Stats, error) {
	var stats types.Stats
	err := s.sessions.With(ctx, id, func(o *orchestrator.Orchestrator) error {
		stats = o.Stats()
		return nil
	})
	return stats, err
}

// ReleaseSession persists the session and evicts it from memory.
func (s *Service) ReleaseSession(ctx context.Context, id string) error {
	return s.sessions.Release(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":           s.started,
		"save_workers":      s.saveWorkers,
		"save_queue_size":   s.saveQueueSize,
		"agent_concurrency": s.agentConcurrency,
	}
	if s.started {
		stats["resident_sessions"] = s.sessions.ResidentCount()
		stats["save_queue_length"] = s.saveQueue.Len()
		stats["deduped_requests"] = s.deduper.Size()
	}
	return stats
}

// subscribeAudit attaches the audit log consumers the bus exists for.
func (s *Service) subscribeAudit() {
	log := s.logger.Named("audit")
	for _, kind := range []bus.Kind{
		bus.SessionStarted,
		bus.SessionEnded,
		bus.SessionReset,
		bus.UserMessageReceived,
		bus.AssistantResponseProduced,
	} {
		k := kind
		s.events.Subscribe(k, func(ctx context.Context, e bus.Event) {
			log.Debug(ctx, string(k),
				logger.String("source", e.Source),
				logger.Any("payload", e.Payload),
			)
		})
	}
	s.events.Subscribe(bus.ErrorRaised, func(ctx context.Context, e bus.Event) {
		log.Warn(ctx, "collaborator error",
			logger.String("source", e.Source),
			logger.Any("payload", e.Payload),
		)
	})
}
