package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	api "github.com/oshokin/cry-relay/internal/api/http/relay"
	"github.com/oshokin/cry-relay/internal/clock"
	"github.com/oshokin/cry-relay/internal/config"
	domain "github.com/oshokin/cry-relay/internal/domain/episode"
	"github.com/oshokin/cry-relay/internal/logger"
	"github.com/oshokin/cry-relay/internal/notify"
	"github.com/oshokin/cry-relay/internal/notify/telegram"
	repo "github.com/oshokin/cry-relay/internal/repository/episode"
	"github.com/oshokin/cry-relay/internal/telemetry"
)

// Options controls the relay process.
type Options struct {
	// ConfigPath specifies the settings YAML file. Empty means the optional default file.
	ConfigPath string
	// ListenAddress overrides the configured HTTP listen address.
	ListenAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
}

const (
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 10 * time.Second
	// readHeaderTimeout protects against slow-header clients.
	readHeaderTimeout = 5 * time.Second
)

// ErrUnknownLogLevel indicates a log level that zap does not know.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Run starts the HTTP relay and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "cry-relay")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyLogLevel(cfg.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	listenAddress := cfg.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := shutdownTelemetry(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.WarnKV(ctx, "Telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	recorder := telemetry.NewRecorder(nil)

	notifier, err := newNotifier(ctx, &cfg.Notifier)
	if err != nil {
		return fmt.Errorf("initialise notifier: %w", err)
	}

	store, closeStore, err := newStore(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("initialise episode store: %w", err)
	}
	defer closeStore()

	executor := NewExecutor(store, notifier, recorder, cfg.Location(), cfg.Executor.QueueSize,
		WithDrainTimeout(cfg.Executor.DrainTimeout),
	)
	detector := NewDetector(DetectorOptions{
		Timings:    toTimings(cfg.Timings),
		Dispatcher: executor,
		Store:      store,
		Clock:      clock.System{},
		Location:   cfg.Location(),
		Recorder:   recorder,
	})

	handler := api.NewServer(detector, clock.System{}, api.Options{
		ChatID:        cfg.Notifier.ChatID,
		WebhookSecret: cfg.Notifier.WebhookSecret,
	})

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	return serve(ctx, lis, handler, executor)
}

// serve runs the executor and the HTTP server on lis until ctx is done.
// The executor is stopped only after the server has finished, so intents
// emitted by in-flight requests are still executed.
func serve(ctx context.Context, lis net.Listener, handler http.Handler, executor *Executor) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	execCtx, stopExecutor := context.WithCancel(context.WithoutCancel(ctx))

	var wg sync.WaitGroup

	wg.Go(func() {
		executor.Run(execCtx)
	})

	logger.InfoKV(ctx, "Cry relay listening", "listen_address", lis.Addr().String())

	// Done channel is closed after Shutdown finishes so Run blocks until the
	// server fully stops.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", err)
		}
	}()

	serveErr := server.Serve(lis)
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		stopExecutor()
		wg.Wait()

		return fmt.Errorf("serve http: %w", serveErr)
	}

	<-done
	stopExecutor()
	wg.Wait()

	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// applyLogLevel sets the logger level, preferring the command-line override.
func applyLogLevel(configured, override string) error {
	value := configured
	if override != "" {
		value = override
	}

	level, ok := logger.ParseLogLevel(value)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, value)
	}

	logger.SetLevel(level)

	return nil
}

// newNotifier builds the Telegram sender, or a no-op one when credentials are missing.
//
//nolint:ireturn // Callers only need the interface; the concrete type depends on config.
func newNotifier(ctx context.Context, cfg *config.Notifier) (notify.Notifier, error) {
	if !cfg.Configured() {
		logger.Warn(ctx, "TELEGRAM_TOKEN or CHAT_ID is not set, notifications are disabled")

		return notify.Nop{}, nil
	}

	client, err := telegram.New(cfg.APIURL, cfg.Token, cfg.ChatID, telegram.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	return client, nil
}

// newStore builds the SQL episode store, or a no-op one when no DSN is set.
//
//nolint:ireturn // Callers only need the interface; the concrete type depends on config.
func newStore(ctx context.Context, cfg *config.Store) (repo.Store, func(), error) {
	if !cfg.Configured() {
		logger.Warn(ctx, "STORE_DSN is not set, episodes will not be persisted")

		return repo.Nop{}, func() {}, nil
	}

	store, err := repo.NewSQLStore(cfg.Driver, cfg.DSN, cfg.Table, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("create sql store: %w", err)
	}

	logger.InfoKV(ctx, "Episode store configured", "driver", cfg.Driver, "table", cfg.Table)

	closeStore := func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close episode store", "error", closeErr)
		}
	}

	return store, closeStore, nil
}

// toTimings converts the configured windows to detector timings.
func toTimings(t config.Timings) domain.Timings {
	return domain.Timings{
		MinAlertGap:         t.MinAlertGap,
		QuietReset:          t.QuietReset,
		BurstWindow:         t.BurstWindow,
		BurstNotifyInterval: t.BurstNotifyInterval,
	}
}
