package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// High-content thresholds per serving.
const (
	sodiumHighMg = 400.0
	satFatHighG  = 5.0
	sugarHighG   = 15.0
)

// nutrient is one entry of the fixed set a food label is scanned for.
type nutrient struct {
	key     string
	labels  []string
	unit    string
	highAt  float64 // 0 = never flagged
}

var nutrients = []nutrient{
	{"calories", []string{"calories", "energy"}, "kcal", 0},
	{"total_fat", []string{"total fat"}, "g", 0},
	{"saturated_fat", []string{"saturated fat", "sat fat"}, "g", satFatHighG},
	{"trans_fat", []string{"trans fat"}, "g", 0},
	{"cholesterol", []string{"cholesterol"}, "mg", 0},
	{"sodium", []string{"sodium", "salt"}, "mg", sodiumHighMg},
	{"carbohydrates", []string{"total carbohydrate", "carbohydrates", "carbohydrate"}, "g", 0},
	{"fiber", []string{"dietary fiber", "fiber", "fibre"}, "g", 0},
	{"sugar", []string{"total sugars", "sugars", "sugar"}, "g", sugarHighG},
	{"protein", []string{"protein"}, "g", 0},
}

var reNutrientValue = regexp.MustCompile(`[:=]?\s*(\d+(?:\.\d+)?)\s*(?:g|mg|kcal|cal)?\b`)

// analyzeFoodLabel extracts the fixed nutrient set, flags sodium,
// saturated fat and sugar above their thresholds, and emits a
// macronutrient visualization payload.
func analyzeFoodLabel(in Input) *entity.TemplateAnalysisResult {
	result := &entity.TemplateAnalysisResult{}
	values := map[string]float64{}

	lower := strings.ToLower(in.Text)
	lines := strings.Split(lower, "\n")
	for _, n := range nutrients {
		v, ok := findNutrient(lines, n)
		if !ok {
			continue
		}
		values[n.key] = v
		status := constants.FindingInfo
		if n.highAt > 0 && v > n.highAt {
			status = constants.FindingHigh
			result.Interpretations = append(result.Interpretations,
				fmt.Sprintf("High %s content: %g %s per serving (threshold %g %s).",
					strings.ReplaceAll(n.key, "_", " "), v, n.unit, n.highAt, n.unit))
		}
		result.Findings = append(result.Findings, entity.TemplateFinding{
			Category: "nutrient",
			Key:      n.key,
			Value:    strconv.FormatFloat(v, 'f', -1, 64),
			Unit:     n.unit,
			Status:   status,
		})
	}

	if len(result.Findings) == 0 {
		result.Interpretations = append(result.Interpretations,
			"No recognizable nutrition facts were found on this label.")
		return result
	}

	if len(result.Interpretations) > 0 {
		result.Recommendations = append(result.Recommendations,
			"This product is high in one or more nutrients of concern; consume in moderation.")
	} else {
		result.Recommendations = append(result.Recommendations,
			"Nutrient levels are within common dietary guidelines per serving.")
	}

	// macronutrient split for chart rendering
	series := map[string]float64{}
	for _, key := range []string{"protein", "carbohydrates", "total_fat"} {
		if v, ok := values[key]; ok {
			series[key] = v
		}
	}
	if len(series) > 0 {
		result.Visualization = &entity.VisualizationPayload{
			Kind:   "macronutrient_breakdown",
			Series: series,
		}
	}
	return result
}

// findNutrient scans lines for a label followed by a value, longest
// label first so "saturated fat" wins over "total fat" on its line.
func findNutrient(lines []string, n nutrient) (float64, bool) {
	for _, line := range lines {
		for _, label := range n.labels {
			idx := strings.Index(line, label)
			if idx < 0 {
				continue
			}
			// skip "saturated fat" lines when looking for "total fat"
			if label == "total fat" && strings.Contains(line, "saturated") {
				continue
			}
			rest := line[idx+len(label):]
			if m := reNutrientValue.FindStringSubmatch(rest); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}
