package template

import (
	"strings"
	"testing"
)

func TestAnalyzeInsuranceClaimFields(t *testing.T) {
	in := Input{Text: "Policy Number: POL-99812\nClaim Amount: $1,250.00\nCoverage Amount: $1,000.00\nStatus: approved"}
	result := analyzeInsuranceClaim(in)

	values := map[string]string{}
	for _, f := range result.Findings {
		values[f.Key] = f.Value
	}
	if values["policy_number"] != "POL-99812" {
		t.Errorf("policy_number = %q", values["policy_number"])
	}
	if values["claim_amount"] != "1,250.00" {
		t.Errorf("claim_amount = %q", values["claim_amount"])
	}
	if values["coverage_amount"] != "1,000.00" {
		t.Errorf("coverage_amount = %q", values["coverage_amount"])
	}

	for _, r := range result.Recommendations {
		if strings.Contains(r, "appeal") {
			t.Errorf("approved claim must not get appeal guidance: %q", r)
		}
	}
}

func TestAnalyzeInsuranceClaimDenial(t *testing.T) {
	in := Input{Text: "Your claim has been DENIED because the service is not covered under your plan."}
	result := analyzeInsuranceClaim(in)

	appeal := false
	for _, r := range result.Recommendations {
		if strings.Contains(r, "appeal") {
			appeal = true
		}
	}
	if !appeal {
		t.Errorf("denial language must produce appeal guidance: %v", result.Recommendations)
	}
}
