// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/beepaudio"
	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/lyra/internal/adapter/audio/mp3audio"
	"github.com/tejashwikalptaru/lyra/internal/adapter/catalog"
	"github.com/tejashwikalptaru/lyra/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/lyra/internal/config"
	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/logger"
	"github.com/tejashwikalptaru/lyra/internal/ports"
	"github.com/tejashwikalptaru/lyra/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
type Application struct {
	// Core dependencies
	logger   *slog.Logger
	settings config.Config

	// Infrastructure
	fs       afero.Fs
	eventBus *eventbus.SyncEventBus

	// Catalog
	library    *catalog.Library
	lyricFiles *catalog.LyricFiles

	// Services
	controller  *service.PlaybackController
	clock       *service.PositionClock
	coordinator *service.PlaybackCoordinator

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config holds application wiring options.
type Config struct {
	// Settings is the loaded user configuration
	Settings config.Config

	// Fs is the filesystem for the library and lyric files (nil for the OS filesystem)
	Fs afero.Fs

	// Logger overrides the logger built from Settings
	Logger *slog.Logger

	// NewPrimary and NewFallback override the backend factories.
	// When nil, Settings.MockAudio selects mock backends, otherwise the sound card is used.
	NewPrimary  ports.BackendFactory
	NewFallback ports.BackendFactory
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(cfg Config) (*Application, error) {
	if cfg.Settings.LibraryDir == "" {
		return nil, domain.NewValidationError(config.KeyLibraryDir, "", "must not be empty")
	}

	app := &Application{settings: cfg.Settings}

	// Step 1: Create logger
	app.logger = cfg.Logger
	if app.logger == nil {
		app.logger = logger.NewLogger(cfg.Settings.Logger())
	}
	app.logger.Debug("initializing application",
		slog.String("version", GetVersionInfo().Version),
		slog.String("library", cfg.Settings.LibraryDir),
		slog.Bool("mock_audio", cfg.Settings.MockAudio))

	app.fs = cfg.Fs
	if app.fs == nil {
		app.fs = afero.NewOsFs()
	}

	// Step 2: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus()
	app.eventBus.SetLogger(app.logger.With(slog.String("component", "eventbus")))

	// Step 3: Select backends
	newPrimary, newFallback := app.backendFactories(cfg)

	// Step 4: Create catalog
	app.library = catalog.NewLibrary(
		app.fs,
		cfg.Settings.LibraryDir,
		app.eventBus,
		app.logger.With(slog.String("component", "catalog")),
	)
	app.lyricFiles = catalog.NewLyricFiles(app.fs)

	// Step 5: Create services (with dependency injection)
	app.controller = service.NewPlaybackController(
		app.logger.With(slog.String("service", "playback")),
		app.eventBus,
		newPrimary,
		newFallback,
	)

	app.clock = service.NewPositionClock(
		app.logger.With(slog.String("service", "clock")),
		app.controller,
		app.eventBus,
		cfg.Settings.ClockInterval,
	)

	app.coordinator = service.NewPlaybackCoordinator(
		app.logger.With(slog.String("service", "coordinator")),
		app.eventBus,
		app.controller,
		app.clock,
		app.library,
		app.lyricFiles,
		service.CoordinatorOptions{
			Sort:       cfg.Settings.Sort,
			SearchMode: cfg.Settings.SearchMode,
			Repeat:     cfg.Settings.Repeat,
		},
	)

	return app, nil
}

// backendFactories picks the primary and fallback constructors.
func (a *Application) backendFactories(cfg Config) (ports.BackendFactory, ports.BackendFactory) {
	primary, fallback := cfg.NewPrimary, cfg.NewFallback

	if cfg.Settings.MockAudio {
		if primary == nil {
			primary = a.mockFactory(domain.BackendPrimary).New
		}
		if fallback == nil {
			fallback = a.mockFactory(domain.BackendFallback).New
		}
		return primary, fallback
	}

	if primary == nil {
		primary = beepaudio.NewFactory(a.fs, beepaudio.Config{
			SampleRate:   cfg.Settings.SampleRate,
			BufferFrames: cfg.Settings.BufferFrames,
		}, a.logger.With(slog.String("engine", "beep")))
	}
	if fallback == nil {
		fallback = mp3audio.NewFactory(a.fs, mp3audio.Config{
			FramesPerBuffer: cfg.Settings.BufferFrames,
		}, a.logger.With(slog.String("engine", "mp3")))
	}
	return primary, fallback
}

// mockFactory builds silent in-memory backends.
func (a *Application) mockFactory(kind domain.BackendKind) *mock.Factory {
	f := mock.NewFactory(kind)
	f.Configure(func(b *mock.Backend) {
		b.SetLogger(a.logger.With(slog.String("engine", "mock"), slog.String("backend", kind.String())))
	})
	return f
}

// Start scans the library and begins position sampling until ctx is done.
func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting lyra", slog.String("version", GetVersionInfo().FullString()))

	if err := a.coordinator.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	a.coordinator.Start(ctx)
	return nil
}

// Coordinator returns the playback coordinator.
func (a *Application) Coordinator() *service.PlaybackCoordinator {
	return a.coordinator
}

// Controller returns the playback controller.
func (a *Application) Controller() *service.PlaybackController {
	return a.controller
}

// Library returns the filesystem catalog.
func (a *Application) Library() *catalog.Library {
	return a.library
}

// LyricFiles returns the lyric source.
func (a *Application) LyricFiles() *catalog.LyricFiles {
	return a.lyricFiles
}

// EventBus returns the event bus.
func (a *Application) EventBus() ports.EventBus {
	return a.eventBus
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Settings returns the configuration the application was built with.
func (a *Application) Settings() config.Config {
	return a.settings
}

// Shutdown gracefully shuts down the application, in reverse order of creation.
// Calling it again returns the first result.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Debug("shutting down application")

		var errs []error

		if a.library.IsScanning() {
			if err := a.library.CancelScan(); err != nil {
				a.logger.Warn("failed to cancel scan", slog.Any("error", err))
			}
		}

		// Stops the clock and releases both backends
		if err := a.coordinator.Close(); err != nil {
			a.logger.Warn("failed to shutdown playback", slog.Any("error", err))
			errs = append(errs, err)
		}

		if err := a.eventBus.Close(); err != nil {
			a.logger.Warn("failed to close event bus", slog.Any("error", err))
			errs = append(errs, err)
		}

		a.shutdownErr = errors.Join(errs...)
		a.logger.Debug("application shutdown complete")
	})
	return a.shutdownErr
}
