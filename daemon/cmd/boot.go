// Package cmd provides command implementations for the event analysis
// engine.
package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ruaan-deysel/eventwatch/daemon/domain"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
	"github.com/ruaan-deysel/eventwatch/daemon/services/alarms"
	"github.com/ruaan-deysel/eventwatch/daemon/services/api"
	"github.com/ruaan-deysel/eventwatch/daemon/services/archive"
	"github.com/ruaan-deysel/eventwatch/daemon/services/engine"
	"github.com/ruaan-deysel/eventwatch/daemon/services/rulestorage"
)

// Boot represents the boot command that starts the event analysis engine:
// rule storage, the engine, the alarm dispatcher, and the HTTP API.
type Boot struct{}

// Run wires and runs every component until the process receives a
// termination signal, then shuts down gracefully within the configured
// grace period.
func (b *Boot) Run(appCtx *domain.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := rulestorage.NewStore(appCtx.RuleStoragePath)
	if err := store.Load(); err != nil {
		logger.Error("Boot: failed to load rule storage: %v", err)
	}

	dispatcher := alarms.NewDispatcher(appCtx.AlarmChannels, 0)

	eng := engine.NewAnalyzerEngine(store, dispatcher,
		engine.WithIngestQueueCapacity(appCtx.IngestQueueCapacity),
		engine.WithAnalyzerQueueCapacity(appCtx.AnalyzerQueueCapacity),
		engine.WithShutdownGrace(appCtx.ShutdownGrace),
	)
	if err := eng.Start(runCtx); err != nil {
		return err
	}
	appCtx.Hub.Pub(eng.State(), lifecycleTopic)

	if err := store.Watch(func(programName string) { eng.ReloadRules(programName) }); err != nil {
		logger.Error("Boot: failed to watch rule storage for changes: %v", err)
	}
	defer func() { _ = store.Close() }()

	archiveStore := archive.NewStore(appCtx.ArchivePath)
	if err := archiveStore.Load(); err != nil {
		logger.Error("Boot: failed to load archive: %v", err)
	}

	server := api.NewServer(eng, dispatcher, archiveStore, appCtx.CORSOrigin)

	httpServer := &http.Server{
		Addr:    ":" + portString(appCtx.Port),
		Handler: server,
	}

	go func() {
		logger.Info("Boot: HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Boot: HTTP server error: %v", err)
		}
	}()

	<-runCtx.Done()
	logger.Info("Boot: shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCtx.ShutdownGrace)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	eng.Stop()
	appCtx.Hub.Pub(eng.State(), lifecycleTopic)
	return nil
}

// lifecycleTopic carries dto.State transitions for in-process subscribers
// (e.g. a future supervisor) that want engine lifecycle notifications
// without polling the HTTP API.
const lifecycleTopic = "engine.lifecycle"

func portString(port int) string {
	if port <= 0 {
		port = 8043
	}
	return strconv.Itoa(port)
}
