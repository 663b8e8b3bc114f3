package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ruaan-deysel/eventwatch/daemon/domain"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
	"github.com/ruaan-deysel/eventwatch/daemon/services/alarms"
	"github.com/ruaan-deysel/eventwatch/daemon/services/engine"
	mcpsrv "github.com/ruaan-deysel/eventwatch/daemon/services/mcp"
	"github.com/ruaan-deysel/eventwatch/daemon/services/rulestorage"
)

// MCPStdio runs the engine headless, with its introspection tools exposed
// over an MCP stdio transport instead of the HTTP API. This is the
// preferred transport for local AI clients (Claude Desktop, Cursor)
// running alongside the engine.
//
// Usage in an MCP client config:
//
//	{
//	  "mcpServers": {
//	    "eventwatch": {
//	      "command": "/usr/local/bin/eventwatch",
//	      "args": ["mcp-stdio"]
//	    }
//	  }
//	}
type MCPStdio struct{}

// Run wires the engine and serves its tools over stdio until the process
// receives a termination signal.
func (m *MCPStdio) Run(appCtx *domain.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := rulestorage.NewStore(appCtx.RuleStoragePath)
	if err := store.Load(); err != nil {
		logger.Error("MCPStdio: failed to load rule storage: %v", err)
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
	defer func() {
		eng.Stop()
		appCtx.Hub.Pub(eng.State(), lifecycleTopic)
	}()

	server := mcpsrv.NewServer(eng)
	return server.RunStdio(runCtx)
}
