package app

import (
	"context"
	"fmt"
	"time"

	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/handlers"
	"github.com/RevoLand/amazon-client/internal/models"
	"github.com/RevoLand/amazon-client/internal/services/browser"
	"github.com/RevoLand/amazon-client/internal/services/captcha"
	"github.com/RevoLand/amazon-client/internal/services/connection"
	"github.com/RevoLand/amazon-client/internal/services/scheduler"
	"github.com/RevoLand/amazon-client/internal/services/scraper"
	"github.com/RevoLand/amazon-client/internal/services/status"
	"github.com/RevoLand/amazon-client/internal/services/tracking"
	"github.com/RevoLand/amazon-client/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

const shutdownGrace = 30 * time.Second

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	StartedAt time.Time
	ctx       context.Context
	cancelCtx context.CancelFunc
	runDone   chan struct{}

	StorageManager *badger.Manager

	Connection       *connection.Manager
	CaptchaRelay     *captcha.Relay
	Registry         *tracking.Registry
	TrackingService  *tracking.Service
	Scraper          *scraper.Orchestrator
	SchedulerService *scheduler.Service
	StatusService    *status.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	StatusHandler *handlers.StatusHandler
	JobsHandler   *handlers.JobsHandler
}

// New initializes storage and wires every component. Nothing talks to
// the network until Start.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancelCtx: cancel,
		runDone:   make(chan struct{}),
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initServices()
	app.initHandlers()

	if err := app.initScheduler(); err != nil {
		app.StorageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	app.initStatus()

	logger.Info().
		Int("max_sessions", cfg.Browser.MaxSessions).
		Str("captcha_timeout", cfg.Captcha.AnswerTimeout.String()).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the cookie jar store and imports legacy cookie files
func (a *App) initDatabase() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	loaded, skipped, failed := manager.CookieStorage().ImportLegacyFiles(a.ctx, a.Config.Storage.Badger.LegacyDir)
	if loaded+skipped+failed > 0 {
		a.Logger.Info().
			Int("loaded", loaded).
			Int("skipped", skipped).
			Int("failed", failed).
			Msg("Legacy cookie files processed")
	}

	return nil
}

// initServices creates services in dependency order: connection, relay, browser, scraper, tracking
func (a *App) initServices() {
	a.Connection = connection.NewManager(connection.OptionsFromConfig(&a.Config.Connection), a.Logger)

	a.CaptchaRelay = captcha.NewRelay(a.Connection, a.Config.Captcha.AnswerTimeout.Std(), a.Logger)

	launcher := browser.NewLauncher(&a.Config.Browser, a.Logger)
	diagnostics := scraper.NewDiagnostics(a.Config.Storage.Diagnostics.Dir, a.Logger)
	a.Scraper = scraper.NewOrchestrator(
		launcher,
		a.StorageManager.CookieStorage(),
		a.CaptchaRelay,
		diagnostics,
		a.Config.Browser.NavigationTimeout.Std(),
		a.Logger,
	)

	a.Registry = tracking.NewRegistry(a.Logger)
	a.TrackingService = tracking.NewService(
		a.ctx,
		a.Registry,
		a.Scraper,
		a.Connection,
		tracking.Options{
			MaxSessions: a.Config.Browser.MaxSessions,
			LaunchRate:  a.Config.Browser.LaunchRate.Std(),
		},
		a.Logger,
	)
}

// initHandlers routes inbound control messages
func (a *App) initHandlers() {
	a.Connection.Handle(models.MessageTypeBeginTracking, a.TrackingService.HandleBeginTracking)
	a.Connection.Handle(models.MessageTypeCreateTracking, a.TrackingService.HandleCreateTracking)
	a.Connection.Handle(models.MessageTypeCaptchaAnswer, a.CaptchaRelay.HandleAnswer)
}

// initScheduler registers periodic maintenance
func (a *App) initScheduler() error {
	a.SchedulerService = scheduler.NewService(a.Logger)

	schedule := a.Config.Maintenance.Schedule
	if schedule == "" {
		a.Logger.Debug().Msg("Maintenance schedule empty, scheduler disabled")
		return nil
	}

	if err := a.SchedulerService.RegisterJob("cookie-store-gc", schedule,
		"Reclaim value log space left by replaced cookie jars", a.StorageManager.RunGC); err != nil {
		return err
	}

	return a.SchedulerService.RegisterJob("tracking-status", schedule,
		"Log in-flight tracking requests and pending captchas", a.logStatus)
}

// initStatus wires the status service to connection transitions and builds the HTTP handlers
func (a *App) initStatus() {
	a.StatusService = status.NewService(a.Registry, a.CaptchaRelay, a.SchedulerService, a.StorageManager.CookieStorage(), a.Logger)
	a.Connection.OnStateChange(a.StatusService.SetConnectionState)

	a.APIHandler = handlers.NewAPIHandler(a.StatusService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
	a.JobsHandler = handlers.NewJobsHandler(a.SchedulerService, a.Logger)
}

func (a *App) logStatus() error {
	active := a.Registry.Active()

	oldest := ""
	if len(active) > 0 {
		oldest = active[0].Age().Round(time.Second).String()
	}

	a.Logger.Info().
		Str("connection", a.Connection.State().String()).
		Int("active_requests", len(active)).
		Str("oldest_request_age", oldest).
		Strs("pending_captchas", a.CaptchaRelay.Pending()).
		Int64("goroutines_spawned", common.GetGoroutineCount()).
		Msg("Worker status")

	return nil
}

// Start connects to the server and starts the scheduler. It returns immediately.
func (a *App) Start() error {
	if len(a.SchedulerService.GetAllJobStatuses()) > 0 {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		defer close(a.runDone)
		a.Connection.Run(a.ctx)
	}()

	common.SafeGo(a.Logger, "await-connection", a.awaitConnection)

	return nil
}

func (a *App) awaitConnection() {
	a.Logger.Info().Str("address", a.Config.Connection.Address).Msg("Awaiting connection to server")

	if err := a.Connection.WaitOpen(a.ctx); err != nil {
		return
	}

	a.Logger.Info().Msg("Worker ready, accepting tracking requests")
}

// Close stops the connection, waits for in-flight scrapes and closes storage
func (a *App) Close() error {
	a.Logger.Info().Msg("Cancelling background goroutines")
	a.cancelCtx()

	select {
	case <-a.runDone:
	case <-time.After(shutdownGrace):
		a.Logger.Warn().Msg("Connection manager did not stop in time")
	}

	scrapesDone := make(chan struct{})
	go func() {
		a.TrackingService.Wait()
		close(scrapesDone)
	}()
	select {
	case <-scrapesDone:
	case <-time.After(shutdownGrace):
		a.Logger.Warn().Int("active_requests", a.Registry.Count()).Msg("Scrapes still running at shutdown")
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
