// Package relay delivers canonical submission records to the
// spreadsheet-backed web-app endpoint. The endpoint forbids normal
// cross-origin requests, so delivery supports three strategies with
// very different confidence levels; a deployment picks exactly one.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/normalize"
)

type Strategy string

const (
	// StrategyPost sends the record as a form-encoded body and reads
	// a JSON {success, message} response.
	StrategyPost Strategy = "post"
	// StrategyPixel serializes the record into query parameters and
	// fires a throwaway GET. It cannot observe the remote response at
	// all: a blind transport with no delivery confirmation.
	StrategyPixel Strategy = "pixel"
	// StrategyCallback serializes the record into query parameters
	// plus a uniquely named callback parameter; the response body is
	// script text invoking that callback with {success, message}.
	StrategyCallback Strategy = "callback"
)

// PlaceholderEndpoint is the unset-endpoint sentinel; deliveries are
// disabled until it is replaced with a real web-app URL.
const PlaceholderEndpoint = "YOUR_WEB_APP_URL_HERE"

const (
	defaultTimeout = 8 * time.Second
	// Query URLs beyond this length silently fail in many network
	// stacks; we flag them rather than abort.
	defaultMaxURLLength = 2000
)

// Outcome is the uniform result of one delivery attempt. Confirmed
// distinguishes a verified remote success from an optimistic
// "dispatched" result (pixel, offline simulation).
type Outcome struct {
	Success   bool   `json:"success"`
	Confirmed bool   `json:"confirmed"`
	Message   string `json:"message"`
}

type Config struct {
	Endpoint     string
	Strategy     Strategy
	Timeout      time.Duration
	MaxURLLength int
	// Offline short-circuits every delivery to a simulated success
	// without touching the network. Documented test/local mode.
	Offline bool
}

type Dispatcher struct {
	cfg       Config
	client    *http.Client
	log       *zap.Logger
	callbacks *callbackRegistry
}

type Option func(*Dispatcher)

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func WithClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = defaultMaxURLLength
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyPost
	}

	d := &Dispatcher{
		cfg:       cfg,
		client:    &http.Client{},
		log:       zap.NewNop(),
		callbacks: newCallbackRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Configured reports whether deliveries are enabled.
func (d *Dispatcher) Configured() bool {
	return d.cfg.Endpoint != "" && d.cfg.Endpoint != PlaceholderEndpoint
}

// Deliver attempts to relay the record over the configured strategy.
// It never returns an error and never panics: every failure path,
// including timeout, resolves to an Outcome with Success false and a
// human-readable message. The call returns within the configured
// timeout bound.
func (d *Dispatcher) Deliver(ctx context.Context, rec normalize.Record) Outcome {
	if d.cfg.Offline {
		d.log.Info("local mode, simulating delivery",
			zap.String("form_type", rec.FormType))
		return Outcome{Success: true, Confirmed: false, Message: "Simulated submission (local mode)"}
	}

	if !d.Configured() {
		d.log.Warn("delivery endpoint not configured, dropping submission")
		return Outcome{Success: false, Message: "delivery endpoint not configured"}
	}

	switch d.cfg.Strategy {
	case StrategyPixel:
		return d.race(ctx, func(ctx context.Context) Outcome { return d.deliverPixel(ctx, rec) })
	case StrategyCallback:
		return d.race(ctx, func(ctx context.Context) Outcome { return d.deliverCallback(ctx, rec) })
	default:
		return d.race(ctx, func(ctx context.Context) Outcome { return d.deliverPost(ctx, rec) })
	}
}

// race runs the strategy against an explicit timer. The timer is
// authoritative: a strategy that hangs past the bound loses, whatever
// its own transport timeouts believe.
func (d *Dispatcher) race(ctx context.Context, run func(context.Context) Outcome) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Success: false, Message: fmt.Sprintf("delivery panicked: %v", r)}
			}
		}()
		done <- run(ctx)
	}()

	timer := time.NewTimer(d.cfg.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out
	case <-timer.C:
		d.log.Warn("delivery timed out", zap.Duration("timeout", d.cfg.Timeout))
		return Outcome{Success: false, Message: "Request timeout"}
	case <-ctx.Done():
		return Outcome{Success: false, Message: "Request timeout"}
	}
}

// queryURL builds the GET form of the record and flags oversized
// URLs, which tend to fail silently downstream.
func (d *Dispatcher) queryURL(values url.Values) string {
	u := d.cfg.Endpoint + "?" + values.Encode()
	if len(u) > d.cfg.MaxURLLength {
		d.log.Warn("constructed URL exceeds safe length and may be dropped in transit",
			zap.Int("length", len(u)),
			zap.Int("limit", d.cfg.MaxURLLength))
	}
	return u
}
