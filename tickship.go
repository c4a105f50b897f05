// Package tickship streams Home Assistant state-change and logbook events
// into a kdb+ tickerplant over the native q IPC protocol.
//
// Example usage:
//
//	cfg := tickship.DefaultConfig()
//	cfg.Host = "kdb.local"
//	cfg.HassToken = "your-long-lived-token"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	b, err := tickship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := b.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop()
package tickship

import (
	"context"
	"time"

	"github.com/tickship/tickship/internal/adapters/hass"
	"github.com/tickship/tickship/internal/app"
	"github.com/tickship/tickship/internal/cliconfig"
	"github.com/tickship/tickship/internal/domain"
	"github.com/tickship/tickship/internal/kipc"
	"github.com/tickship/tickship/internal/ports"
	"github.com/tickship/tickship/pkg/log"
)

// Config holds the configuration for the bridge. Use DefaultConfig() for
// sensible defaults; at minimum HassToken must be set.
type Config = cliconfig.Config

// State represents the lifecycle state of the bridge.
type State = app.State

// Lifecycle states.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Errors returned by the public API; check with errors.Is.
var (
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// Option customizes a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to a zerolog console logger honoring
// cfg.Debug.
func WithLogger(l log.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithEventSource replaces the Home Assistant websocket source, mainly for
// embedding and tests.
func WithEventSource(src ports.EventSource) Option {
	return func(b *Bridge) { b.source = src }
}

// WithDialer replaces the tickerplant dialer, mainly for tests.
func WithDialer(d ports.TickDialer) Option {
	return func(b *Bridge) { b.dialer = d }
}

// WithStateListener registers a hook invoked on lifecycle transitions; hosts
// can surface user-facing notifications from it.
func WithStateListener(l app.StateListener) Option {
	return func(b *Bridge) { b.listener = l }
}

// Bridge owns the event source, the publish pipeline, and the reconnecting
// tickerplant client. Its lifecycle is scoped to the owning process: build
// with New, run with Start, tear down with Stop. There is no ambient global
// connection state.
type Bridge struct {
	cfg      Config
	logger   log.Logger
	source   ports.EventSource
	dialer   ports.TickDialer
	listener app.StateListener

	lifecycle *app.Lifecycle
	client    *app.Client
}

// New validates the configuration and assembles a stopped bridge.
func New(cfg Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.NewZerologAdapter(cfg.Debug)
	}
	if b.dialer == nil {
		b.dialer = tickDialer(cfg)
	}
	if b.source == nil {
		b.source = hass.NewSource(hass.Config{
			URL:   cfg.HassURL,
			Token: cfg.HassToken,
		}, b.logger)
	}
	b.lifecycle = app.NewLifecycle(b.logger, b.listener)
	return b, nil
}

// tickDialer builds the production dialer from the configured endpoint.
func tickDialer(cfg Config) ports.TickDialer {
	return func() (ports.TickConn, error) {
		return kipc.Dial(kipc.Config{
			Host:          cfg.Host,
			Port:          cfg.Port,
			User:          cfg.User,
			Password:      cfg.Password,
			DialTimeout:   cfg.DialTimeout,
			MaxFrameBytes: uint32(cfg.MaxFrameBytes),
			Compress:      cfg.Compress,
		})
	}
}

// Start brings the bridge to Running: it builds the publish pipeline and
// launches the event source and publish workers. The tickerplant connection
// itself is opened lazily on the first publish.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := b.lifecycle.TransitionTo(app.StateStarting, "start requested"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.lifecycle.SetCancel(cancel)

	cfg := b.cfg
	b.client = app.NewClient(b.dialer, app.ClientConfig{
		RetryInterval: cfg.RetryInterval,
		Startup: func() kipc.Value {
			return app.StartupCall(cfg.Table, cfg.UpdateFunc, time.Now)
		},
	}, b.logger)

	filter := app.NewFilter(cfg.Include, cfg.Exclude)
	publisher := app.NewPublisher(filter, b.client, cfg.Table, cfg.UpdateFunc, b.logger)
	queue := app.NewEventQueue(app.DefaultQueueSize, publisher, b.logger)

	b.lifecycle.AddWorker()
	go func() {
		defer b.lifecycle.WorkerDone()
		queue.Run(runCtx)
	}()

	b.lifecycle.AddWorker()
	go func() {
		defer b.lifecycle.WorkerDone()
		err := b.source.Run(runCtx, queue)
		if err != nil && runCtx.Err() == nil {
			b.logger.Error("event source failed", log.Err(err))
			_ = b.lifecycle.TransitionTo(app.StateCrashed, "event source failure")
			// Stop is never called on a crashed bridge; release the
			// remaining workers and the socket here.
			cancel()
			b.client.Close()
		}
	}()

	if err := b.lifecycle.TransitionTo(app.StateRunning, "started"); err != nil {
		// The source can crash before the Running transition lands; the
		// bridge is up, just already in the Crashed state.
		if b.lifecycle.State() == app.StateCrashed {
			return nil
		}
		return err
	}
	return nil
}

// Stop cancels the workers, closes the tickerplant connection, and waits for
// graceful shutdown.
func (b *Bridge) Stop() error {
	if !b.lifecycle.CanStop() {
		return domain.ErrNotRunning
	}
	if err := b.lifecycle.TransitionTo(app.StateStopping, "stop requested"); err != nil {
		return err
	}
	b.lifecycle.Cancel()
	if b.client != nil {
		b.client.Close()
	}
	waitErr := b.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	if err := b.lifecycle.TransitionTo(app.StateStopped, "stopped"); err != nil {
		return err
	}
	return waitErr
}

// Status returns the bridge's lifecycle state.
func (b *Bridge) Status() State {
	return b.lifecycle.State()
}
