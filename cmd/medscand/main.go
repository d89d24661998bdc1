// medscand is the capture pipeline daemon. It opens the configured
// store, watches connectivity to drain deferred cloud jobs, and serves
// a gRPC health endpoint for orchestration.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/pipeline"
	"github.com/medscan-app/medscan/internal/provider"
	"github.com/medscan-app/medscan/internal/queue"
	"github.com/medscan-app/medscan/internal/store"
	"github.com/medscan-app/medscan/internal/template"
	"github.com/medscan-app/medscan/internal/vision"
)

func main() {
	zl, _ := zap.NewProduction()
	defer zl.Sync()
	log := zl.Sugar()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()
	log.Infow("store ready", "driver", cfg.Store.Driver)

	q := queue.New(st, logger)
	processor := vision.NewProcessor(vision.Config{
		Tesseract:        cfg.Vision.Tesseract,
		TesseractLang:    cfg.Vision.TesseractLang,
		TessdataDir:      cfg.Vision.TessdataDir,
		Zbarimg:          cfg.Vision.Zbarimg,
		ArtifactCacheDir: cfg.Vision.ArtifactCacheDir,
		MinWordConf:      cfg.Vision.MinWordConf,
	}, logger)
	engine := template.NewEngine(logger)

	opts := pipeline.Options{
		Connectivity: provider.NewDialChecker(cfg.Queue.ProbeAddr),
	}
	if cfg.OCR.BaseURL != "" {
		opts.OCR = provider.NewOCRClient(cfg.OCR, logger)
	}
	if cfg.Insight.BaseURL != "" {
		opts.Insight = provider.NewInsightClient(cfg.Insight, logger)
	}
	if cfg.Comply.BaseURL != "" {
		opts.Compliance = provider.NewComplianceClient(cfg.Comply, logger)
	}
	orch := pipeline.New(processor, engine, st, q, opts, logger)

	// drain deferred cloud work whenever connectivity comes back
	watcher := provider.NewWatcher(opts.Connectivity, cfg.Queue.ProbeInterval, logger)
	go watcher.Run(ctx)
	go q.RunDrainLoop(ctx, watcher.Restored(), orch, logger)

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Infof("gRPC serving on %s", cfg.Server.GRPCAddr)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	grpcServer.GracefulStop()
	fmt.Println("stopped.")
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, cfg.Store.DSN, logger)
	default:
		return store.OpenSQLite(ctx, cfg.Store.DSN, logger)
	}
}
