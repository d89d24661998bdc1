// Package template is the document-type-specific structured extraction
// engine: lab values, medications, claims, nutrition. Analysis is pure
// and deterministic; identical input always yields identical output.
package template

import (
	"log/slog"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// Input is the best-available material for analysis: unified text plus
// whatever tables and entities the providers produced.
type Input struct {
	Text     string
	Tables   []entity.TableStructure
	Entities []string
}

type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Analyze dispatches on document type. Every analyzer returns the
// common findings/interpretations/recommendations shape.
func (e *Engine) Analyze(docType constants.DocumentType, in Input) *entity.TemplateAnalysisResult {
	var result *entity.TemplateAnalysisResult
	switch docType {
	case constants.DocTypeMedicalReport:
		result = analyzeLabReport(in)
	case constants.DocTypePrescription:
		result = analyzePrescription(in)
	case constants.DocTypeInsuranceClaim:
		result = analyzeInsuranceClaim(in)
	case constants.DocTypeFoodLabel:
		result = analyzeFoodLabel(in)
	default:
		result = analyzeGeneric(in)
	}
	result.DocumentType = docType

	e.logger.Debug("template.analyze.ok",
		"document_type", string(docType),
		"findings", len(result.Findings),
		"recommendations", len(result.Recommendations),
	)
	return result
}
