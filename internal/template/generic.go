package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// analyzeGeneric is the fallback for unrecognized document types.
func analyzeGeneric(in Input) *entity.TemplateAnalysisResult {
	words := len(strings.Fields(in.Text))
	return &entity.TemplateAnalysisResult{
		Findings: []entity.TemplateFinding{{
			Category: "document",
			Key:      "word_count",
			Value:    strconv.Itoa(words),
			Status:   constants.FindingInfo,
		}},
		Interpretations: []string{
			fmt.Sprintf("This document contains approximately %d words of recognized text.", words),
		},
		Recommendations: []string{
			"Assign a more specific document type to unlock structured analysis.",
		},
	}
}
