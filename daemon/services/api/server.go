// Package api exposes the engine's introspection surface over HTTP:
// analyzer status, diagnostic messages, recent alarms, the archive
// document view, a prometheus endpoint, swagger docs, and a websocket
// stream of EngineMessage/AlarmMessage.
package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/ruaan-deysel/eventwatch/daemon/docs"
	"github.com/ruaan-deysel/eventwatch/daemon/services/alarms"
	"github.com/ruaan-deysel/eventwatch/daemon/services/archive"
	"github.com/ruaan-deysel/eventwatch/daemon/services/engine"
)

// Server serves the engine's HTTP introspection surface.
type Server struct {
	router  *mux.Router
	engine  *engine.AnalyzerEngine
	alarms  *alarms.Dispatcher
	archive archive.Archive
	wsHub   *WSHub
	metrics *Metrics
}

// NewServer builds a Server wired to eng, its alarm dispatcher, and the
// archive store. corsOrigin is forwarded as-is to corsMiddleware.
func NewServer(eng *engine.AnalyzerEngine, alarmDispatcher *alarms.Dispatcher, archiveStore archive.Archive, corsOrigin string) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		engine:  eng,
		alarms:  alarmDispatcher,
		archive: archiveStore,
		wsHub:   NewWSHub(),
		metrics: NewMetrics(registry),
	}
	s.setupRoutes(corsOrigin, registry)
	return s
}

// WSHub exposes the websocket hub so callers can wrap an AlarmSink/
// EngineMessageSink to also broadcast to connected dashboards.
func (s *Server) WSHub() *WSHub { return s.wsHub }

// Metrics exposes the registered prometheus collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) setupRoutes(corsOrigin string, registry *prometheus.Registry) {
	router := mux.NewRouter()
	router.Use(corsMiddleware(corsOrigin))
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/analyzers", s.handleListAnalyzers).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/engine/messages", s.handleEngineMessages).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/alarms/recent", s.handleRecentAlarms).Methods(http.MethodGet, http.MethodOptions)
	apiV1.HandleFunc("/rules/reload/{program}", s.handleReloadRules).Methods(http.MethodPost, http.MethodOptions)
	apiV1.HandleFunc("/events/{partition}/{row}", s.handleGetEvent).Methods(http.MethodGet, http.MethodOptions)

	router.HandleFunc("/ws", s.wsHub.ServeHTTP)

	s.router = router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
