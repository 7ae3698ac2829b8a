// Package drill runs concurrent end-to-end interviews against a running
// service instance and verifies the responses. It is the load driver behind
// cmd/drill.
package drill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/okian/greenroom/pkg/logger"
)

// Config controls one drill run.
type Config struct {
	BaseURL  string
	Sessions int
	Answers  int
	Workers  int
	Timeout  time.Duration
	Verbose  bool
}

// Stats accumulates drill counters across workers.
type Stats struct {
	StartTime time.Time
	Duration  time.Duration

	SessionsRun    atomic.Int64
	SessionsFailed atomic.Int64
	TurnsSent      atomic.Int64
	Coaching       atomic.Int64
}

var answers = []string{
	"I led the migration of our billing pipeline to a streaming model and cut processing lag from hours to minutes.",
	"Short answer.",
	"When our release process kept breaking, I introduced staged rollouts with automated canary checks, which brought failed deploys down to nearly zero over a quarter.",
	"I disagreed with a teammate about splitting a service; we prototyped both options and let the latency numbers decide.",
	"I once shipped a schema change without a rollback plan. We recovered, and I wrote the migration checklist we still use.",
}

// Run executes the complete drill.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting interview drill",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("answers", cfg.Answers),
		logger.Int("workers", cfg.Workers),
	)

	client := newClient(cfg.BaseURL, cfg.Timeout)
	if err := client.checkHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	p := pool.New().WithMaxGoroutines(cfg.Workers)
	for i := 0; i < cfg.Sessions; i++ {
		i := i
		p.Go(func() {
			id := fmt.Sprintf("drill-%s", uuid.NewString())
			if err := runSession(ctx, client, cfg, id, stats); err != nil {
				stats.SessionsFailed.Add(1)
				log.Warn(ctx, "session failed",
					logger.String("session_id", id),
					logger.Int("index", i),
					logger.Error(err),
				)
				return
			}
			stats.SessionsRun.Add(1)
		})
	}
	p.Wait()

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "drill completed",
		logger.Int("sessions_ok", int(stats.SessionsRun.Load())),
		logger.Int("sessions_failed", int(stats.SessionsFailed.Load())),
		logger.Int("turns_sent", int(stats.TurnsSent.Load())),
		logger.Int("coaching_turns", int(stats.Coaching.Load())),
		logger.Duration("duration", stats.Duration),
	)
	if failed := stats.SessionsFailed.Load(); failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, cfg.Sessions)
	}
	return nil
}

// runSession drives one interview from start through summary and verifies
// the conversation shape along the way.
func runSession(ctx context.Context, c *client, cfg *Config, id string, stats *Stats) error {
	start := map[string]any{
		"role_title":       "Backend Engineer",
		"style":            "mixed",
		"target_questions": cfg.Answers,
	}
	if err := c.post(ctx, "/sessions/"+id+"/start", start, http.StatusCreated, nil); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var reply struct {
		Role         string `json:"role"`
		ResponseType string `json:"response_type"`
		Content      string `json:"content"`
	}
	msg := func(content string) error {
		body := map[string]any{"content": content, "request_id": uuid.NewString()}
		if err := c.post(ctx, "/sessions/"+id+"/message", body, http.StatusOK, &reply); err != nil {
			return err
		}
		stats.TurnsSent.Add(1)
		return nil
	}

	if err := msg("I'm ready, let's begin."); err != nil {
		return fmt.Errorf("first message: %w", err)
	}
	if reply.ResponseType != "question" {
		return fmt.Errorf("expected opening question, got %q", reply.ResponseType)
	}

	for i := 0; i < cfg.Answers; i++ {
		if err := msg(answers[i%len(answers)]); err != nil {
			return fmt.Errorf("answer %d: %w", i, err)
		}
	}

	var summary struct {
		Strengths        []string `json:"strengths"`
		ImprovementAreas []string `json:"improvement_areas"`
	}
	if err := c.post(ctx, "/sessions/"+id+"/end", nil, http.StatusOK, &summary); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if len(summary.Strengths) == 0 {
		return fmt.Errorf("summary has no strengths")
	}

	var history []struct {
		Role         string `json:"role"`
		ResponseType string `json:"response_type"`
	}
	if err := c.get(ctx, "/sessions/"+id+"/history", &history); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	coaching := 0
	for _, t := range history {
		if t.ResponseType == "coaching-feedback" {
			coaching++
		}
	}
	if cfg.Answers > 0 && coaching == 0 {
		return fmt.Errorf("no coaching feedback in %d turns", len(history))
	}
	stats.Coaching.Add(int64(coaching))
	return nil
}

// client is a thin JSON HTTP client for the drill.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *client) post(ctx context.Context, path string, body any, wantStatus int, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, wantStatus, out)
}

func (c *client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, http.StatusOK, out)
}

func (c *client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
