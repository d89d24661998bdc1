package vision

import (
	"regexp"
	"sort"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/entity"
)

// MaskChar is the fixed character redaction substitutes for PHI bytes.
const MaskChar = '*'

// Pattern detectors. Each produces spans with a fixed confidence;
// named-entity heuristics below carry lower confidence than the
// structured patterns.
var (
	reDateNumeric = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	reDateWritten = regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`)
	rePhone       = regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?\(?\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b`)
	reMRN         = regexp.MustCompile(`(?i)\b(?:MRN|medical record (?:number|no\.?))[:#]?\s*([A-Z0-9][A-Z0-9-]{4,11})\b`)
	reNationalID  = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	rePersonTitled  = regexp.MustCompile(`\b(?:Dr|Mr|Mrs|Ms|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}`)
	rePersonLabeled = regexp.MustCompile(`(?i)\bpatient(?:\s+name)?\s*:\s*`)
	reCapitalized   = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}`)
	reOrganization  = regexp.MustCompile(`\b(?:[A-Z][A-Za-z&'-]+\s+){0,3}(?:Hospital|Clinic|Medical Center|Laborator(?:y|ies)|Healthcare|Pharmacy)\b`)
	reStreetAddress = regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive)\b\.?`)
)

// DetectPHI finds personally-identifying spans in recognized text.
// Offsets are byte offsets into the input.
func (p *Processor) DetectPHI(text string) []entity.DetectedPHI {
	return DetectPHI(text)
}

// DetectPHI is the pure detector behind Processor.DetectPHI.
func DetectPHI(text string) []entity.DetectedPHI {
	var out []entity.DetectedPHI

	add := func(t constants.PHIEntityType, start, end int, conf float32) {
		if end <= start {
			return
		}
		out = append(out, entity.DetectedPHI{
			Type:       t,
			Value:      text[start:end],
			Start:      start,
			End:        end,
			Confidence: conf,
		})
	}

	for _, m := range reDateNumeric.FindAllStringIndex(text, -1) {
		add(constants.PHIDate, m[0], m[1], 0.95)
	}
	for _, m := range reDateWritten.FindAllStringIndex(text, -1) {
		add(constants.PHIDate, m[0], m[1], 0.90)
	}
	for _, m := range rePhone.FindAllStringIndex(text, -1) {
		add(constants.PHIPhone, m[0], m[1], 0.92)
	}
	for _, m := range reMRN.FindAllStringSubmatchIndex(text, -1) {
		// mask only the identifier, not the "MRN" label
		add(constants.PHIMedicalRecordNumber, m[2], m[3], 0.97)
	}
	for _, m := range reNationalID.FindAllStringIndex(text, -1) {
		add(constants.PHINationalID, m[0], m[1], 0.97)
	}

	for _, m := range rePersonTitled.FindAllStringIndex(text, -1) {
		add(constants.PHIName, m[0], m[1], 0.80)
	}
	for _, m := range rePersonLabeled.FindAllStringIndex(text, -1) {
		rest := text[m[1]:]
		if name := reCapitalized.FindStringIndex(rest); name != nil {
			add(constants.PHIName, m[1]+name[0], m[1]+name[1], 0.85)
		}
	}
	for _, m := range reOrganization.FindAllStringIndex(text, -1) {
		add(constants.PHIOrganization, m[0], m[1], 0.75)
	}
	for _, m := range reStreetAddress.FindAllStringIndex(text, -1) {
		add(constants.PHILocation, m[0], m[1], 0.78)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return dedupeOverlaps(out)
}

// dedupeOverlaps keeps the earlier (and on ties, higher-confidence)
// detection when spans overlap, so each byte is claimed once.
func dedupeOverlaps(in []entity.DetectedPHI) []entity.DetectedPHI {
	var out []entity.DetectedPHI
	lastEnd := -1
	for _, d := range in {
		if d.Start < lastEnd {
			continue
		}
		out = append(out, d)
		lastEnd = d.End
	}
	return out
}

// RedactPHI replaces each detected span with an equal-length run of
// MaskChar, applied from the highest offset to the lowest so earlier
// offsets remain valid. Output length always equals input length.
func (p *Processor) RedactPHI(text string, detections []entity.DetectedPHI) string {
	return RedactPHI(text, detections)
}

// RedactPHI is the pure masking function behind Processor.RedactPHI.
func RedactPHI(text string, detections []entity.DetectedPHI) string {
	if len(detections) == 0 {
		return text
	}

	sorted := make([]entity.DetectedPHI, len(detections))
	copy(sorted, detections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	b := []byte(text)
	for _, d := range sorted {
		if d.Start < 0 || d.End > len(b) || d.End <= d.Start {
			continue
		}
		for i := d.Start; i < d.End; i++ {
			b[i] = MaskChar
		}
	}
	return string(b)
}
