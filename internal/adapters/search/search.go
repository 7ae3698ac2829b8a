// Package search defines the learning-resource lookup boundary used while
// building the final summary, plus a bounded fanout helper over it.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/logger"
)

// Default fanout configuration constants.
const (
	defaultWidth   = 4
	defaultTimeout = 5 * time.Second
)

// Searcher resolves one topic to learning resources.
type Searcher interface {
	Resources(ctx context.Context, topic string) ([]model.Resource, error)
}

// Fanout queries one searcher for many topics with bounded concurrency.
// A slow or failing topic yields no resources for that topic; it never
// fails the whole lookup.
type Fanout struct {
	searcher Searcher
	width    int
	timeout  time.Duration
	log      logger.Logger
}

// Option applies a configuration option to the Fanout.
type Option func(*Fanout)

// WithWidth caps concurrent topic lookups.
func WithWidth(width int) Option {
	return func(f *Fanout) {
		if width > 0 {
			f.width = width
		}
	}
}

// WithTimeout bounds each topic lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fanout) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the fanout.
func WithLogger(l logger.Logger) Option {
	return func(f *Fanout) {
		if l != nil {
			f.log = l
		}
	}
}

// NewFanout creates a fanout over searcher.
func NewFanout(searcher Searcher, opts ...Option) *Fanout {
	f := &Fanout{
		searcher: searcher,
		width:    defaultWidth,
		timeout:  defaultTimeout,
		log:      logger.Get().Named("search"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Lookup queries every topic once and merges results in topic order.
func (f *Fanout) Lookup(ctx context.Context, topics []string) []model.Resource {
	if len(topics) == 0 {
		return nil
	}

	results := make([][]model.Resource, len(topics))
	p := pool.New().WithMaxGoroutines(f.width)
	for i, topic := range topics {
		i, topic := i, topic
		p.Go(func() {
			callCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			rs, err := f.searcher.Resources(callCtx, topic)
			if err != nil {
				f.log.Warn(ctx, "resource lookup failed; skipping topic",
					logger.String("topic", topic),
					logger.Error(err),
				)
				return
			}
			results[i] = rs
		})
	}
	p.Wait()

	var merged []model.Resource
	for _, rs := range results {
		merged = append(merged, rs...)
	}
	return merged
}

// StaticSearcher is the deterministic in-memory searcher used by the
// default wiring and tests.
type StaticSearcher struct {
	catalog map[string][]model.Resource
}

// NewStaticSearcher creates a searcher over a small curated catalog.
func NewStaticSearcher() *StaticSearcher {
	return &StaticSearcher{
		catalog: map[string][]model.Resource{
			"structuring answers": {
				{Topic: "structuring answers", Title: "The STAR interview method", URL: "https://example.org/star-method"},
			},
			"quantifying impact": {
				{Topic: "quantifying impact", Title: "Talking about impact with numbers", URL: "https://example.org/impact-metrics"},
			},
			"system design": {
				{Topic: "system design", Title: "A primer on system design interviews", URL: "https://example.org/system-design"},
			},
		},
	}
}

// Resources returns curated entries for known topics and a generic search
// pointer otherwise.
func (s *StaticSearcher) Resources(ctx context.Context, topic string) ([]model.Resource, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup cancelled: %w", ctx.Err())
	default:
	}

	key := strings.ToLower(strings.TrimSpace(topic))
	if rs, ok := s.catalog[key]; ok {
		return rs, nil
	}
	return []model.Resource{{
		Topic: topic,
		Title: "Practice material for " + topic,
		URL:   "https://example.org/search?q=" + strings.ReplaceAll(key, " ", "+"),
	}}, nil
}
