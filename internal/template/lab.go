package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// referenceRange is one known lab test with its normal interval.
type referenceRange struct {
	name    string
	aliases []string
	min     float64
	max     float64
	unit    string
}

// Fixed reference ranges for common panels.
var labRanges = []referenceRange{
	{"Glucose", []string{"blood glucose", "fasting glucose"}, 70, 100, "mg/dL"},
	{"Hemoglobin", []string{"hgb", "hb"}, 13.5, 17.5, "g/dL"},
	{"Hematocrit", []string{"hct"}, 38.8, 50.0, "%"},
	{"WBC", []string{"white blood cell", "leukocytes"}, 4.5, 11.0, "10^3/uL"},
	{"Platelets", []string{"plt"}, 150, 400, "10^3/uL"},
	{"Creatinine", nil, 0.7, 1.3, "mg/dL"},
	{"Cholesterol", []string{"total cholesterol"}, 125, 200, "mg/dL"},
	{"Triglycerides", nil, 35, 150, "mg/dL"},
	{"HDL", []string{"hdl cholesterol"}, 40, 60, "mg/dL"},
	{"LDL", []string{"ldl cholesterol"}, 50, 130, "mg/dL"},
	{"TSH", nil, 0.4, 4.0, "mIU/L"},
	{"Sodium", []string{"na"}, 135, 145, "mmol/L"},
	{"Potassium", []string{"k"}, 3.5, 5.0, "mmol/L"},
}

var labValuePattern = regexp.MustCompile(`[:=]?\s*(\d+(?:\.\d+)?)`)

// classifyLabValue applies the status thresholds:
// below 0.7x range-min is critical, below range-min abnormal,
// above 1.5x range-max critical, above range-max abnormal.
func classifyLabValue(v, min, max float64) constants.FindingStatus {
	switch {
	case v < 0.7*min:
		return constants.FindingCriticalLow
	case v < min:
		return constants.FindingAbnormalLow
	case v > 1.5*max:
		return constants.FindingCriticalHigh
	case v > max:
		return constants.FindingAbnormalHigh
	default:
		return constants.FindingNormal
	}
}

// analyzeLabReport matches known test names in text and table rows,
// classifies each value against its reference range, and escalates to
// an urgent recommendation when any critical value exists.
func analyzeLabReport(in Input) *entity.TemplateAnalysisResult {
	result := &entity.TemplateAnalysisResult{}
	seen := map[string]bool{}

	record := func(rr referenceRange, value float64) {
		if seen[rr.name] {
			return
		}
		seen[rr.name] = true
		status := classifyLabValue(value, rr.min, rr.max)
		result.Findings = append(result.Findings, entity.TemplateFinding{
			Category:    "lab_value",
			Key:         rr.name,
			Value:       strconv.FormatFloat(value, 'f', -1, 64),
			Unit:        rr.unit,
			NormalRange: fmt.Sprintf("%g-%g", rr.min, rr.max),
			Status:      status,
		})
		if status != constants.FindingNormal {
			result.Interpretations = append(result.Interpretations,
				fmt.Sprintf("%s is %s at %g %s (normal %g-%g)",
					rr.name, statusLabel(status), value, rr.unit, rr.min, rr.max))
		}
	}

	lower := strings.ToLower(in.Text)
	for _, rr := range labRanges {
		if v, ok := findLabValue(lower, rr); ok {
			record(rr, v)
		}
	}
	for _, table := range in.Tables {
		for _, row := range table.Rows {
			if len(row) < 2 {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(row[0]))
			for _, rr := range labRanges {
				if !matchesTestName(name, rr) {
					continue
				}
				if v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64); err == nil {
					record(rr, v)
				}
			}
		}
	}

	if len(result.Findings) == 0 {
		result.Interpretations = append(result.Interpretations,
			"No recognizable lab values were found in this report.")
		return result
	}

	hasCritical := result.HasCritical()
	if hasCritical {
		result.Recommendations = append(result.Recommendations,
			"URGENT: one or more values are critically out of range. Contact your physician immediately.")
	} else if len(result.Interpretations) > 0 {
		result.Recommendations = append(result.Recommendations,
			"Some values are outside their normal ranges. Discuss these results with your physician.")
	} else {
		result.Recommendations = append(result.Recommendations,
			"All recognized values are within normal ranges.")
	}
	return result
}

func statusLabel(s constants.FindingStatus) string {
	switch s {
	case constants.FindingCriticalLow:
		return "critically low"
	case constants.FindingAbnormalLow:
		return "below normal"
	case constants.FindingAbnormalHigh:
		return "above normal"
	case constants.FindingCriticalHigh:
		return "critically high"
	default:
		return "normal"
	}
}

// findLabValue looks for "name ... <number>" on the same line.
func findLabValue(lowerText string, rr referenceRange) (float64, bool) {
	names := append([]string{strings.ToLower(rr.name)}, rr.aliases...)
	for _, line := range strings.Split(lowerText, "\n") {
		for _, name := range names {
			idx := indexWord(line, name)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(name):]
			m := labValuePattern.FindStringSubmatch(rest)
			if m == nil {
				continue
			}
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func matchesTestName(name string, rr referenceRange) bool {
	if name == strings.ToLower(rr.name) {
		return true
	}
	for _, a := range rr.aliases {
		if name == a {
			return true
		}
	}
	return false
}

// indexWord finds name in line at a word boundary.
func indexWord(line, name string) int {
	idx := strings.Index(line, name)
	for idx >= 0 {
		beforeOK := idx == 0 || !isWordByte(line[idx-1])
		end := idx + len(name)
		afterOK := end >= len(line) || !isWordByte(line[end])
		if beforeOK && afterOK {
			return idx
		}
		next := strings.Index(line[idx+1:], name)
		if next < 0 {
			return -1
		}
		idx = idx + 1 + next
	}
	return -1
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
