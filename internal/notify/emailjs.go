// Package notify sends transactional email about event changes through EmailJS.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

	displayTimeLayout = "02 Jan 2006, 15:04"
)

type Config struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	Endpoint   string
	// Concurrency bounds in-flight sends per fan-out.
	Concurrency int
	// PerSecond and Burst throttle sends across all fan-outs.
	PerSecond float64
	Burst     int
	Timeout   time.Duration
}

// EventChangeNotice is what one attendee receives after an event is edited.
type EventChangeNotice struct {
	Email     string
	EventName string
	Venue     string
	StartsAt  time.Time
	EndsAt    time.Time
	Capacity  int
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

type EmailJS struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewEmailJS(cfg Config, logger *slog.Logger) *EmailJS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailJS{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		logger:  logger,
	}
}

// Enabled reports whether all EmailJS credentials are present.
func (e *EmailJS) Enabled() bool {
	return e.cfg.ServiceID != "" && e.cfg.TemplateID != "" && e.cfg.PublicKey != ""
}

func templateParams(n EventChangeNotice) map[string]string {
	return map[string]string{
		"email":       n.Email,
		"event_name":  n.EventName,
		"event_venue": n.Venue,
		"event_start": n.StartsAt.Format(displayTimeLayout),
		"event_end":   n.EndsAt.Format(displayTimeLayout),
		"event_pax":   strconv.Itoa(n.Capacity),
	}
}

// Send delivers one notice. It is a no-op when EmailJS is not configured.
func (e *EmailJS) Send(ctx context.Context, n EventChangeNotice) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(n.Email) == "" {
		return errors.New("notice has no recipient")
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     e.cfg.TemplateID,
		UserID:         e.cfg.PublicKey,
		TemplateParams: templateParams(n),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// NotifyAll fans the notices out with bounded concurrency. Individual failures
// are logged and counted; the call itself only fails if ctx ends.
func (e *EmailJS) NotifyAll(ctx context.Context, notices []EventChangeNotice) (sent int, err error) {
	if !e.Enabled() || len(notices) == 0 {
		return 0, nil
	}

	results := make([]bool, len(notices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, n := range notices {
		g.Go(func() error {
			if err := e.Send(gctx, n); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("failed to send event change email",
					"email", n.Email,
					"event_name", n.EventName,
					"error", err,
				)
				return nil
			}
			results[i] = true
			return nil
		})
	}
	err = g.Wait()

	for _, ok := range results {
		if ok {
			sent++
		}
	}
	return sent, err
}
