package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// pill-organizer threshold: more than this many concurrent medications
const pillOrganizerThreshold = 3

var (
	reMedicationLine = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]\s*)?([A-Z][a-zA-Z]{3,})\s+(\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units))\b`)
	reDosage         = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units)\b`)
	reFrequency      = regexp.MustCompile(`(?i)\b(?:once|twice|three times|four times)\s+(?:a\s+|per\s+)?(?:day|daily|week)|\bevery\s+\d+\s+hours?\b|\b(?:daily|nightly|weekly|at bedtime|as needed|with meals)\b|\b(?:QD|BID|TID|QID|PRN|HS)\b`)
	reDuration       = regexp.MustCompile(`(?i)\bfor\s+\d+\s+(?:days?|weeks?|months?)\b`)
)

// analyzePrescription extracts medication, dosage, frequency and
// duration from entity mentions plus nearby text windows, and emits
// per-medication usage instructions.
func analyzePrescription(in Input) *entity.TemplateAnalysisResult {
	result := &entity.TemplateAnalysisResult{}

	type medication struct {
		name      string
		dosage    string
		frequency string
		duration  string
	}
	var meds []medication
	seen := map[string]bool{}

	addMed := func(name, window string) {
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		m := medication{name: name}
		m.dosage = reDosage.FindString(window)
		m.frequency = reFrequency.FindString(window)
		m.duration = reDuration.FindString(window)
		meds = append(meds, m)
	}

	// entity mentions first, with a text window around each mention
	for _, ent := range in.Entities {
		ent = strings.TrimSpace(ent)
		if ent == "" {
			continue
		}
		idx := strings.Index(strings.ToLower(in.Text), strings.ToLower(ent))
		if idx < 0 {
			continue
		}
		addMed(ent, textWindow(in.Text, idx, 120))
	}

	// then labeled medication lines in the raw text
	for _, m := range reMedicationLine.FindAllStringSubmatchIndex(in.Text, -1) {
		name := in.Text[m[2]:m[3]]
		addMed(name, textWindow(in.Text, m[0], 120))
	}

	for _, m := range meds {
		result.Findings = append(result.Findings, entity.TemplateFinding{
			Category: "medication",
			Key:      m.name,
			Value:    m.dosage,
			Status:   constants.FindingInfo,
		})
		instruction := "Take " + m.name
		if m.dosage != "" {
			instruction += " " + m.dosage
		}
		if m.frequency != "" {
			instruction += ", " + strings.ToLower(m.frequency)
		}
		if m.duration != "" {
			instruction += ", " + strings.ToLower(m.duration)
		}
		result.Interpretations = append(result.Interpretations, instruction+".")
	}

	if len(meds) == 0 {
		result.Interpretations = append(result.Interpretations,
			"No medications could be identified on this prescription.")
		return result
	}

	result.Recommendations = append(result.Recommendations,
		fmt.Sprintf("Follow the prescribed schedule for all %d medication(s) and complete the full course.", len(meds)))
	if len(meds) > pillOrganizerThreshold {
		result.Recommendations = append(result.Recommendations,
			"You have more than three concurrent medications; a pill organizer can help you keep doses on schedule.")
	}
	return result
}

// textWindow returns up to radius bytes either side of idx.
func textWindow(text string, idx, radius int) string {
	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + radius
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
