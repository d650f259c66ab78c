package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/handlers"
	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/services/directory"
	"github.com/shopwise/dealagent/internal/services/events"
	"github.com/shopwise/dealagent/internal/services/history"
	"github.com/shopwise/dealagent/internal/services/runner"
	"github.com/shopwise/dealagent/internal/services/shopping"
	"github.com/shopwise/dealagent/internal/services/tracker"
	"github.com/shopwise/dealagent/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	Directory      interfaces.DirectoryService
	RunnerClient   interfaces.RunnerClient
	History        *history.Service
	Shopping       *shopping.Service
	Tracker        *tracker.Service

	TaskHandler     *handlers.TaskHandler
	HistoryHandler  *handlers.HistoryHandler
	ShoppingHandler *handlers.ShoppingHandler
	StatusHandler   *handlers.StatusHandler
	WSHandler       *handlers.WebSocketHandler
}

// New wires up all services in dependency order
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventService := events.NewService(logger)

	directoryService := directory.NewService(&config.Directory, eventService, logger)
	if err := directoryService.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start directory service: %w", err)
	}

	runnerClient := runner.NewClient(&config.Runner, logger)

	historyService, err := history.NewService(ctx, storageManager.KeyValueStorage(), config.History.MaxEntries, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	shoppingService := shopping.NewService(storageManager.KeyValueStorage(), config.History.MaxShoppingItems, logger)

	trackerService := tracker.NewService(runnerClient, eventService, directoryService, historyService, &config.Tracker, logger)

	app := &App{
		Config:          config,
		Logger:          logger,
		StorageManager:  storageManager,
		EventService:    eventService,
		Directory:       directoryService,
		RunnerClient:    runnerClient,
		History:         historyService,
		Shopping:        shoppingService,
		Tracker:         trackerService,
		TaskHandler:     handlers.NewTaskHandler(trackerService, logger),
		HistoryHandler:  handlers.NewHistoryHandler(historyService, logger),
		ShoppingHandler: handlers.NewShoppingHandler(shoppingService, logger),
		StatusHandler:   handlers.NewStatusHandler(directoryService, logger),
		WSHandler:       handlers.NewWebSocketHandler(eventService, &config.WebSocket, logger),
	}

	logger.Info().Msg("Application initialized")

	return app, nil
}

// Close shuts down all services
func (a *App) Close() error {
	a.Directory.Stop()

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close event service")
	}

	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
