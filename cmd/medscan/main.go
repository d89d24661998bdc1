// medscan runs the capture pipeline once over an image file and prints
// the resulting insight as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
	"github.com/medscan-app/medscan/internal/pipeline"
	"github.com/medscan-app/medscan/internal/provider"
	"github.com/medscan-app/medscan/internal/queue"
	"github.com/medscan-app/medscan/internal/store"
	"github.com/medscan-app/medscan/internal/template"
	"github.com/medscan-app/medscan/internal/vision"
)

func main() {
	var (
		docType  = flag.String("type", "", "document type hint (e.g. MEDICAL_REPORT, FOOD_LABEL)")
		language = flag.String("lang", "en", "document language")
		offline  = flag.Bool("offline", false, "skip cloud providers and defer their work")
		consent  = flag.Bool("share-unredacted", false, "send unredacted text to cloud providers")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: medscan [flags] <image-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(flag.Arg(0), *docType, *language, *offline, *consent, logger); err != nil {
		logger.Error("medscan failed", "error", err)
		os.Exit(1)
	}
}

func run(path, docType, language string, offline, consent bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	imageData, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfg := common.LoadConfig()
	st, err := store.OpenSQLite(ctx, cfg.Store.DSN, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	q := queue.New(st, logger)
	processor := vision.NewProcessor(vision.Config{
		Tesseract:        cfg.Vision.Tesseract,
		TesseractLang:    cfg.Vision.TesseractLang,
		TessdataDir:      cfg.Vision.TessdataDir,
		Zbarimg:          cfg.Vision.Zbarimg,
		ArtifactCacheDir: cfg.Vision.ArtifactCacheDir,
		MinWordConf:      cfg.Vision.MinWordConf,
	}, logger)

	opts := pipeline.Options{
		Connectivity: provider.Connectivity(provider.NewDialChecker(cfg.Queue.ProbeAddr)),
	}
	if offline {
		opts.Connectivity = offlineChecker{}
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
	orch := pipeline.New(processor, template.NewEngine(logger), st, q, opts, logger)

	hint, _ := constants.CanonicalizeDocumentType(docType)
	doc := &entity.CapturedDocument{
		ID:           uuid.New(),
		ImageData:    imageData,
		DocumentType: hint,
		Language:     language,
		ShareConsent: consent,
		PageCount:    1,
		Stage:        constants.StageCaptured,
	}

	progress := func(stage constants.ProcessingStage, fraction float64) {
		fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", fraction*100, stage)
	}

	ins, err := orch.ProcessDocument(ctx, doc, progress)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(ins, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// offlineChecker forces the deferral path for every cloud call.
type offlineChecker struct{}

func (offlineChecker) Online(context.Context) bool { return false }
