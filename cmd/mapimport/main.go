// Command mapimport runs the full 24-stage (23 required plus the optional
// TextIndex) OSM planet-extract import pipeline against one or more
// .osm/.pbf map files, driven by
// internal/orchestrator.Engine. It assembles the ordered stage list, wires
// the optional ambient services (ledger, control-plane HTTP API, block
// ingest gRPC server, run-completion email, GCS publish), and plays the
// same app-bootstrap role as a typical service's cmd/main.go —
// generalized from an HTTP SaaS server to a batch CLI that also happens to
// expose a small ops surface while it runs.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/osmscout-go/mapimport/internal/breaker"
	"github.com/osmscout-go/mapimport/internal/config"
	"github.com/osmscout-go/mapimport/internal/control"
	"github.com/osmscout-go/mapimport/internal/gcsstore"
	"github.com/osmscout-go/mapimport/internal/ingest"
	"github.com/osmscout-go/mapimport/internal/ledger"
	"github.com/osmscout-go/mapimport/internal/nametiebreak"
	"github.com/osmscout-go/mapimport/internal/notify"
	"github.com/osmscout-go/mapimport/internal/orchestrator"
	pkglogger "github.com/osmscout-go/mapimport/internal/pkg/logger"
	"github.com/osmscout-go/mapimport/internal/platform/neo4jdb"
	"github.com/osmscout-go/mapimport/internal/platform/openai"
	platformlogger "github.com/osmscout-go/mapimport/internal/platform/logger"
	"github.com/osmscout-go/mapimport/internal/platform/pinecone"
	"github.com/osmscout-go/mapimport/internal/platform/qdrant"
	"github.com/osmscout-go/mapimport/internal/platform/routegraph"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/realtime"
	"github.com/osmscout-go/mapimport/internal/stages/areaareaindex"
	"github.com/osmscout-go/mapimport/internal/stages/areanodeindex"
	"github.com/osmscout-go/mapimport/internal/stages/areawayindex"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/intersectionindex"
	"github.com/osmscout-go/mapimport/internal/stages/locationindex"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareadata"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareas"
	"github.com/osmscout-go/mapimport/internal/stages/nodedata"
	"github.com/osmscout-go/mapimport/internal/stages/optimizeareaslowzoom"
	"github.com/osmscout-go/mapimport/internal/stages/optimizeareawayids"
	"github.com/osmscout-go/mapimport/internal/stages/optimizewayslowzoom"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/stages/rawrelationindex"
	"github.com/osmscout-go/mapimport/internal/stages/rawwayindex"
	"github.com/osmscout-go/mapimport/internal/stages/relareadata"
	"github.com/osmscout-go/mapimport/internal/stages/routedata"
	"github.com/osmscout-go/mapimport/internal/stages/sortnodedata"
	"github.com/osmscout-go/mapimport/internal/stages/sortwaydata"
	"github.com/osmscout-go/mapimport/internal/stages/textindex"
	"github.com/osmscout-go/mapimport/internal/stages/typedata"
	"github.com/osmscout-go/mapimport/internal/stages/waterindex"
	"github.com/osmscout-go/mapimport/internal/stages/wayareadata"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

func main() {
	coreLog, err := pkglogger.New(os.Getenv("MAPIMPORT_LOG_MODE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapimport: logger init: %v\n", err)
		os.Exit(1)
	}
	defer coreLog.Sync()

	platformLog, err := platformlogger.New(os.Getenv("MAPIMPORT_LOG_MODE"))
	if err != nil {
		coreLog.Fatal("platform logger init failed", "error", err)
	}
	defer platformLog.Sync()

	if err := run(coreLog, platformLog); err != nil {
		coreLog.Fatal("import run failed", "error", err)
	}
}

func run(coreLog *pkglogger.Logger, platformLog *platformlogger.Logger) error {
	param, err := config.LoadFromEnv(coreLog)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := param.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	typeFile, err := os.Open(param.Typefile)
	if err != nil {
		return fmt.Errorf("open type file: %w", err)
	}
	tc, err := typeinfo.Load(typeFile)
	_ = typeFile.Close()
	if err != nil {
		return fmt.Errorf("load type config: %w", err)
	}

	ledgerStore, err := ledger.Open(param.LedgerDriver, param.LedgerDSN)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledgerStore.Close()

	brk := breaker.NewThreaded()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		brk.Break()
	}()

	ingestServer := ingest.NewServer(platformLog, 1000)
	grpcSrv := grpc.NewServer()
	grpcSrv.RegisterService(&ingest.ServiceDesc, ingestServer)
	grpcAddr := envOr("MAPIMPORT_INGEST_ADDR", ":7070")
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen for block ingest: %w", err)
	}
	go func() {
		coreLog.Info("block ingest gRPC server listening", "addr", grpcAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			coreLog.Warn("block ingest gRPC server stopped", "error", err)
		}
	}()
	defer grpcSrv.GracefulStop()

	controlServer := control.NewServer(platformLog, ledgerStore, brk)
	controlAddr := envOr("MAPIMPORT_CONTROL_ADDR", ":8081")
	controlRouter := controlServer.NewRouter(os.Getenv("MAPIMPORT_CONTROL_AUTH_SECRET"))
	controlHTTP := &http.Server{Addr: controlAddr, Handler: controlRouter}
	go func() {
		coreLog.Info("control-plane HTTP API listening", "addr", controlAddr)
		if err := controlHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			coreLog.Warn("control-plane HTTP API stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = controlHTTP.Shutdown(shutdownCtx)
	}()

	notifyClient, toEmail, err := notify.NewFromEnv(platformLog)
	if err != nil {
		coreLog.Warn("run-completion email disabled", "error", err)
	}

	objectStore, err := gcsstore.NewFromEnv(platformLog)
	if err != nil {
		coreLog.Warn("output publishing disabled", "error", err)
	}

	tieBreak := buildNameTieBreak()
	embedder, vectorStore := buildTextIndexBackend(platformLog)

	stages := []orchestrator.Named{
		{Step: 1, Name: "TypeData", Stage: typedata.New()},
		{Step: 2, Name: "Preprocess", Stage: preprocess.New(ingestServer, brk)},
		{Step: 3, Name: "CoordData", Stage: coorddata.New(param.NumericIndexPageSize)},
		{Step: 4, Name: "RawWayIndex", Stage: rawwayindex.New()},
		{Step: 5, Name: "RawRelationIndex", Stage: rawrelationindex.New()},
		{Step: 6, Name: "RelAreaData", Stage: relareadata.New()},
		{Step: 7, Name: "WayAreaData", Stage: wayareadata.New()},
		{Step: 8, Name: "MergeAreaData", Stage: mergeareadata.New()},
		{Step: 9, Name: "MergeAreas", Stage: mergeareas.New()},
		{Step: 10, Name: "WayWayData", Stage: wayway.New()},
		// SortWayData runs before OptimizeAreaWayIds: both read/write
		// wayway.DataFile in place, and identifier optimization must see
		// the final spatially-sorted way order, not re-sort after ids
		// have already been reassigned.
		{Step: 11, Name: "SortWayData", Stage: sortwaydata.New()},
		{Step: 12, Name: "OptimizeAreaWayIds", Stage: optimizeareawayids.New()},
		{Step: 13, Name: "NodeData", Stage: nodedata.New()},
		{Step: 14, Name: "SortNodeData", Stage: sortnodedata.New()},
		{Step: 15, Name: "AreaNodeIndex", Stage: areanodeindex.New(
			param.AreaWayIndexMaxLevel, param.AreaNodeIndexCellSizeAverage, param.AreaNodeIndexCellSizeMax, param.AreaNodeIndexMinFillRate)},
		{Step: 16, Name: "AreaWayIndex", Stage: areawayindex.New(
			param.AreaWayIndexMaxLevel, param.AreaWayIndexCellSizeAverage, param.AreaWayIndexCellSizeMax, false)},
		{Step: 17, Name: "AreaAreaIndex", Stage: areaareaindex.New(
			param.AreaAreaIndexMaxMag, param.AreaNodeIndexCellSizeAverage, param.AreaNodeIndexCellSizeMax)},
		{Step: 18, Name: "WaterIndex", Stage: waterindex.New(param.WaterIndexMinMag, param.WaterIndexMaxMag, param.AssumeLand)},
		{Step: 19, Name: "OptimizeAreasLowZoom", Stage: optimizeareaslowzoom.New(
			param.OptimizationMinMag, param.OptimizationMaxMag, param.OptimizationMaxWayCount)},
		{Step: 20, Name: "OptimizeWaysLowZoom", Stage: optimizewayslowzoom.New(
			param.OptimizationMinMag, param.OptimizationMaxMag, param.OptimizationMaxWayCount,
			param.OptimizationCellSizeAverage, param.OptimizationCellSizeMax)},
		{Step: 21, Name: "LocationIndex", Stage: locationindex.New(param.LangOrder, param.AltLangOrder, tieBreak)},
		{Step: 22, Name: "RouteData", Stage: routedata.New(toRouters(param.Router), routeStoreFactory())},
		{Step: 23, Name: "IntersectionIndex", Stage: intersectionindex.New()},
		{Step: 24, Name: "TextIndex", Stage: textindex.New(embedder, vectorStore)},
	}

	if err := orchestrator.ValidateDAG(stages); err != nil {
		return fmt.Errorf("validate stage DAG: %w", err)
	}

	engine := orchestrator.New(coreLog, ledgerStore, stages)

	sink := progress.MultiSink{controlServer.Sink()}
	if redisSink, err := realtime.NewRedisSink(coreLog); err != nil {
		coreLog.Warn("progress Redis sink unavailable", "error", err)
	} else if redisSink != nil {
		sink = append(sink, redisSink)
		defer redisSink.Close()
	}
	controlServer.SetActiveRun(param.DestinationDirectory)

	start := time.Now()
	runErr := engine.Run(ctx, tc, param, sink, brk)
	controlServer.SetActiveRun("")

	notify.ReportRunResult(context.Background(), platformLog, notifyClient, toEmail, notify.RunSummary{
		Extract:  param.DestinationDirectory,
		Stages:   len(stages),
		Duration: time.Since(start),
		Err:      runErr,
	})

	if runErr == nil && objectStore != nil {
		if n, pubErr := objectStore.UploadDir(context.Background(), param.DestinationDirectory, ""); pubErr != nil {
			coreLog.Warn("failed to publish output directory", "error", pubErr)
		} else {
			coreLog.Info("published output directory", "files", n)
		}
	}

	return runErr
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func toRouters(routers []config.Router) []config.Router {
	if len(routers) > 0 {
		return routers
	}
	return []config.Router{{VehicleMask: routedataVehicleCar(), FilenameBase: "router"}}
}

func routedataVehicleCar() uint8 { return routedata.VehicleCar }

// routeStoreFactory returns a routegraph.Store constructor: Neo4j-backed
// when NEO4J_URI is configured, in-memory otherwise, an env-gated client
// construction pattern generalized to a routing-graph backend.
func routeStoreFactory() func() routegraph.Store {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		return func() routegraph.Store { return routegraph.NewMemStore() }
	}
	neoLog, err := platformlogger.New(os.Getenv("MAPIMPORT_LOG_MODE"))
	if err != nil {
		return func() routegraph.Store { return routegraph.NewMemStore() }
	}
	client, err := neo4jdb.NewFromEnv(neoLog)
	if err != nil || client == nil {
		return func() routegraph.Store { return routegraph.NewMemStore() }
	}
	return func() routegraph.Store { return routegraph.NewNeo4jStore(client.Driver, client.Database) }
}

// buildNameTieBreak wires the optional LLM-assisted canonical-name
// tie-break for LocationIndex behind MAPIMPORT_NAMETIEBREAK_ENABLED, off by
// default since deterministic lang_order scan is the primary
// path.
func buildNameTieBreak() nametiebreak.Client {
	if os.Getenv("MAPIMPORT_NAMETIEBREAK_ENABLED") == "" {
		return nil
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil
	}
	return nametiebreak.New(apiKey, os.Getenv("OPENAI_BASE_URL"), os.Getenv("MAPIMPORT_NAMETIEBREAK_MODEL"))
}

// buildTextIndexBackend wires the optional TextIndex stage: both an
// embedder and a vector store must be configured or the stage is a no-op
// (textindex.Stage treats either as nil-safe). Qdrant is preferred over a
// hosted Pinecone index when QDRANT_URL is set, a selection rule between a
// self-hosted and managed vector backend.
func buildTextIndexBackend(log *platformlogger.Logger) (textindex.Embedder, pinecone.VectorStore) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, nil
	}
	embedder, err := openai.NewClient(log)
	if err != nil {
		log.Warn("text index embedder unavailable", "error", err)
		return nil, nil
	}

	if os.Getenv("QDRANT_URL") != "" {
		cfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			log.Warn("text index vector store (qdrant) unavailable", "error", err)
			return nil, nil
		}
		store, err := qdrant.NewVectorStore(log, cfg)
		if err != nil {
			log.Warn("text index vector store (qdrant) unavailable", "error", err)
			return nil, nil
		}
		return embedder, store
	}

	pineconeAPIKey := os.Getenv("PINECONE_API_KEY")
	if pineconeAPIKey == "" {
		return nil, nil
	}
	pc, err := pinecone.New(log, pinecone.Config{APIKey: pineconeAPIKey})
	if err != nil {
		log.Warn("text index vector store (pinecone) unavailable", "error", err)
		return nil, nil
	}
	store, err := pinecone.NewVectorStore(log, pc)
	if err != nil {
		log.Warn("text index vector store (pinecone) unavailable", "error", err)
		return nil, nil
	}
	return embedder, store
}
