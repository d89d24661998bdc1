package vision

import (
	"context"
	"strings"

	"github.com/medscan-app/medscan/internal/entity"
)

// DetectBarcodes decodes barcodes and QR codes via zbarimg, following
// the same exec pattern as OCR. A missing binary or decode failure
// degrades to an empty result: barcode decode is optional.
func (p *Processor) DetectBarcodes(ctx context.Context, imageData []byte) ([]entity.BarcodeResult, error) {
	path, cleanup, err := p.stageImage(imageData)
	if err != nil {
		p.logger.Warn("vision.barcode.stage_failed", "error", err)
		return nil, nil
	}
	defer cleanup()

	// zbarimg -q prints one "SYMBOLOGY:payload" line per decode.
	out, _, err := p.runner.Run(ctx, p.cfg.Zbarimg, "-q", path)
	if err != nil {
		p.logger.Debug("vision.barcode.unavailable", "error", err)
		return nil, nil
	}

	var results []entity.BarcodeResult
	for _, ln := range strings.Split(string(out), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		sym, payload, ok := strings.Cut(ln, ":")
		if !ok || payload == "" {
			continue
		}
		results = append(results, entity.BarcodeResult{
			Payload:    payload,
			Symbology:  sym,
			Confidence: 1.0, // zbar only reports successful decodes
		})
	}
	return results, nil
}
