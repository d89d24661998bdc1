package entity

import "github.com/medscan-app/medscan/constants"

// TemplateFinding is one extracted, classified value.
type TemplateFinding struct {
	Category    string                  `json:"category"`
	Key         string                  `json:"key"`
	Value       string                  `json:"value"`
	Unit        string                  `json:"unit,omitempty"`
	NormalRange string                  `json:"normal_range,omitempty"`
	Status      constants.FindingStatus `json:"status"`
}

// VisualizationPayload is an optional chart-ready aggregation.
type VisualizationPayload struct {
	Kind   string             `json:"kind"`
	Series map[string]float64 `json:"series"`
}

// TemplateAnalysisResult is the common shape all template analyzers return.
type TemplateAnalysisResult struct {
	DocumentType    constants.DocumentType `json:"document_type"`
	Findings        []TemplateFinding      `json:"findings"`
	Interpretations []string               `json:"interpretations,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	Visualization   *VisualizationPayload  `json:"visualization,omitempty"`
}

// HasCritical reports whether any finding is critically out of range.
func (r *TemplateAnalysisResult) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Status == constants.FindingCriticalLow || f.Status == constants.FindingCriticalHigh {
			return true
		}
	}
	return false
}
