// Package provider holds the cloud OCR and vision analysis clients.
// Each client is independent: its failure never blocks or fails a
// sibling call, and each carries its own retry policy. The internal
// wire schema of each provider is private to its client; only the
// structured results in internal/entity are the public contract.
package provider

import (
	"context"

	"github.com/medscan-app/medscan/internal/entity"
)

// OCRRequest carries the inputs for a high-fidelity cloud OCR call.
type OCRRequest struct {
	ImageData []byte
	Language  string
}

// OCRProvider is the cloud OCR contract.
type OCRProvider interface {
	Name() string
	RecognizeDocument(ctx context.Context, req OCRRequest) (*entity.CloudOCRResult, error)
}

// VisionRequest carries the inputs for a semantic analysis call. Text
// must already be PHI-redacted unless the user consented to sharing.
type VisionRequest struct {
	ImageData    []byte
	Text         string
	DocumentType string
	Language     string
}

// VisionAnalyzer is the contract for one cloud vision analyzer.
type VisionAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, req VisionRequest) (*entity.VisionAnalysisResult, error)
}
