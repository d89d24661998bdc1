package template

import (
	"testing"

	"github.com/medscan-app/medscan/constants"
)

const sampleLabel = `Nutrition Facts
Serving Size 1 cup (240ml)
Calories 250
Total Fat 12g
Saturated Fat 6g
Trans Fat 0g
Cholesterol 30mg
Sodium 470mg
Total Carbohydrate 31g
Dietary Fiber 0g
Total Sugars 5g
Protein 5g`

func TestAnalyzeFoodLabel(t *testing.T) {
	result := analyzeFoodLabel(Input{Text: sampleLabel})

	byKey := map[string]constants.FindingStatus{}
	values := map[string]string{}
	for _, f := range result.Findings {
		byKey[f.Key] = f.Status
		values[f.Key] = f.Value
	}

	if values["calories"] != "250" {
		t.Errorf("calories = %q, want 250", values["calories"])
	}
	if byKey["sodium"] != constants.FindingHigh {
		t.Errorf("sodium 470mg should be flagged high, got %s", byKey["sodium"])
	}
	if byKey["saturated_fat"] != constants.FindingHigh {
		t.Errorf("saturated fat 6g should be flagged high, got %s", byKey["saturated_fat"])
	}
	if byKey["sugar"] != constants.FindingInfo {
		t.Errorf("5g sugar should not be flagged, got %s", byKey["sugar"])
	}
	if byKey["total_fat"] != constants.FindingInfo {
		t.Errorf("total fat carries no threshold, got %s", byKey["total_fat"])
	}
	if values["total_fat"] != "12" {
		t.Errorf("total fat = %q, want 12 (not the saturated fat line)", values["total_fat"])
	}

	if result.Visualization == nil {
		t.Fatal("expected a macronutrient visualization payload")
	}
	if result.Visualization.Kind != "macronutrient_breakdown" {
		t.Errorf("unexpected visualization kind: %q", result.Visualization.Kind)
	}
	wantSeries := map[string]float64{"protein": 5, "carbohydrates": 31, "total_fat": 12}
	for k, v := range wantSeries {
		if result.Visualization.Series[k] != v {
			t.Errorf("series[%s] = %v, want %v", k, result.Visualization.Series[k], v)
		}
	}
}

func TestAnalyzeFoodLabelNoFacts(t *testing.T) {
	result := analyzeFoodLabel(Input{Text: "a photo of a sandwich"})
	if len(result.Findings) != 0 {
		t.Errorf("expected no findings, got %+v", result.Findings)
	}
	if result.Visualization != nil {
		t.Error("no visualization expected without nutrients")
	}
}
