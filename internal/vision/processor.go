// Package vision is the on-device processor: offline text recognition,
// document classification, PHI detection/redaction, and barcode decode.
// It is always available and serves as the guaranteed fallback when no
// cloud provider is reachable.
package vision

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/internal/entity"
)

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	Zbarimg       string // if empty -> "zbarimg"; barcode decode degrades silently without it

	PSM int // e.g. 6 for a uniform block of text
	OEM int // 1 = LSTM; 0 uses the engine default

	// MinWordConf drops recognized words below this confidence (0..1).
	// Zero keeps everything.
	MinWordConf float32

	ArtifactCacheDir string
}

type Processor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewProcessor(cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.Zbarimg == "" {
		cfg.Zbarimg = "zbarimg"
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}
	return &Processor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// RecognizeText runs fully-offline OCR over raw image bytes. An
// undecodable image yields a typed empty result, never an error: the
// pipeline treats "nothing readable" as a valid outcome.
func (p *Processor) RecognizeText(ctx context.Context, imageData []byte, languageHints []string) (*entity.OnDeviceResult, error) {
	start := time.Now()

	lang := p.cfg.TesseractLang
	if len(languageHints) > 0 && languageHints[0] != "" {
		lang = strings.Join(languageHints, "+")
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(imageData)); err != nil {
		p.logger.Warn("vision.recognize.undecodable", "bytes", len(imageData), "error", err)
		return &entity.OnDeviceResult{Language: lang, Duration: time.Since(start)}, nil
	}

	path, cleanup, err := p.stageImage(imageData)
	if err != nil {
		p.logger.Warn("vision.recognize.stage_failed", "error", err)
		return &entity.OnDeviceResult{Language: lang, Duration: time.Since(start)}, nil
	}
	defer cleanup()

	words, err := p.tesseractTSV(ctx, path, lang)
	if err != nil {
		p.logger.Warn("vision.recognize.tesseract_failed", "error", err)
		return &entity.OnDeviceResult{Language: lang, Duration: time.Since(start)}, nil
	}

	if p.cfg.MinWordConf > 0 {
		kept := words[:0]
		for _, w := range words {
			if float32(w.conf/100.0) >= p.cfg.MinWordConf {
				kept = append(kept, w)
			}
		}
		words = kept
	}

	blocks, fullText, conf := assembleBlocks(words)
	p.logger.Debug("vision.recognize.ok",
		"blocks", len(blocks),
		"text_bytes", len(fullText),
		"confidence", conf,
		"lang", lang,
	)

	return &entity.OnDeviceResult{
		Text:       fullText,
		Blocks:     blocks,
		Language:   lang,
		Confidence: conf,
		Duration:   time.Since(start),
	}, nil
}

// stageImage writes image bytes into the artifact cache for the OCR
// binary to read. cleanup removes the staged file.
func (p *Processor) stageImage(imageData []byte) (string, func(), error) {
	if err := os.MkdirAll(p.cfg.ArtifactCacheDir, 0o755); err != nil {
		return "", func() {}, err
	}
	path := filepath.Join(p.cfg.ArtifactCacheDir, "capture-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, imageData, 0o600); err != nil {
		return "", func() {}, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}
