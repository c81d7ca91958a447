// Package control exposes an operational HTTP API over a running (or
// most recent) import: health, run/stage history from the ledger, the
// live progress snapshot, and a cancellation endpoint wired to the
// orchestrator's breaker. It is a monitoring/ops surface distinct from
// the import CLI itself, built on a gin router and AuthMiddleware
// generalized from cookie/session user auth to a single shared-secret
// bearer token suited to an ops API with no user accounts.
package control

import (
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/osmscout-go/mapimport/internal/breaker"
	"github.com/osmscout-go/mapimport/internal/ledger"
	"github.com/osmscout-go/mapimport/internal/platform/logger"
	"github.com/osmscout-go/mapimport/internal/progress"
)

// Server holds the state the control-plane handlers read from: the
// run/stage ledger, the active run's breaker (so an operator can abort
// it), and the most recent progress snapshot reported by whatever stage
// is currently running.
type Server struct {
	log     *logger.Logger
	ledger  *ledger.Store
	breaker *breaker.Threaded

	activeRunID atomic.Value // string
	latest      atomic.Value // progress.Snapshot
}

func NewServer(log *logger.Logger, store *ledger.Store, brk *breaker.Threaded) *Server {
	s := &Server{log: log.With("component", "ControlServer"), ledger: store, breaker: brk}
	s.activeRunID.Store("")
	s.latest.Store(progress.Snapshot{})
	return s
}

// SetActiveRun records which run ID the orchestrator is currently
// executing, or "" once it finishes.
func (s *Server) SetActiveRun(runID string) { s.activeRunID.Store(runID) }

// Sink adapts Server to progress.Sink so the orchestrator can report
// directly into it alongside the ledger and any live-dashboard bus.
func (s *Server) Sink() progress.Sink {
	return progress.FuncSink(func(snap progress.Snapshot) { s.latest.Store(snap) })
}

// NewRouter builds the gin engine: CORS, OpenTelemetry tracing, and a
// bearer-token-protected API group, matching layering in
// internal/server/router.go (plain group for health, protected group for
// everything else) but with a single shared-secret token instead of a
// per-user session.
func (s *Server) NewRouter(authSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mapimport-control"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	router.GET("/healthz", s.handleHealthz)

	api := router.Group("/api")
	if authSecret != "" {
		api.Use(RequireAuth(authSecret))
	}
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/active", s.handleActiveRun)
	api.POST("/runs/active/abort", s.handleAbortActiveRun)

	return router
}
