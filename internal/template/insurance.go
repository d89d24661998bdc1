package template

import (
	"regexp"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

var (
	rePolicyNumber   = regexp.MustCompile(`(?i)\bpolicy\s*(?:number|no\.?|#)?\s*[:#]\s*([A-Z0-9][A-Z0-9-]{3,})`)
	reClaimAmount    = regexp.MustCompile(`(?i)\bclaim(?:ed)?\s*amount\s*[:=]?\s*\$?\s*([\d,]+(?:\.\d{2})?)`)
	reCoverageAmount = regexp.MustCompile(`(?i)\bcover(?:age|ed)\s*(?:amount)?\s*[:=]?\s*\$?\s*([\d,]+(?:\.\d{2})?)`)
)

var denialKeywords = []string{"denied", "denial", "rejected", "rejection", "not covered", "declined"}

// analyzeInsuranceClaim extracts labeled claim fields and branches into
// appeal guidance when denial language is present.
func analyzeInsuranceClaim(in Input) *entity.TemplateAnalysisResult {
	result := &entity.TemplateAnalysisResult{}

	addField := func(key, value string) {
		if value == "" {
			return
		}
		result.Findings = append(result.Findings, entity.TemplateFinding{
			Category: "claim_field",
			Key:      key,
			Value:    value,
			Status:   constants.FindingInfo,
		})
	}

	if m := rePolicyNumber.FindStringSubmatch(in.Text); m != nil {
		addField("policy_number", m[1])
	}
	if m := reClaimAmount.FindStringSubmatch(in.Text); m != nil {
		addField("claim_amount", m[1])
	}
	if m := reCoverageAmount.FindStringSubmatch(in.Text); m != nil {
		addField("coverage_amount", m[1])
	}

	lower := strings.ToLower(in.Text)
	denied := false
	for _, kw := range denialKeywords {
		if strings.Contains(lower, kw) {
			denied = true
			break
		}
	}

	if denied {
		result.Interpretations = append(result.Interpretations,
			"This claim appears to have been denied or partially rejected.")
		result.Recommendations = append(result.Recommendations,
			"Review the denial reason, gather supporting documentation, and file an appeal before the deadline stated in the letter.",
			"Contact your insurer's member services for the appeal form and submission address.")
	} else {
		result.Interpretations = append(result.Interpretations,
			"No denial language was detected in this claim document.")
		result.Recommendations = append(result.Recommendations,
			"Keep this document with your records until the claim is settled.")
	}
	return result
}
