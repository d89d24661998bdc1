package vision

import (
	"strings"

	"github.com/medscan-app/medscan/constants"
)

// Keyword tables for document-type classification. Matching is
// case-insensitive whole-text containment; the type with the most hits
// wins, ties resolved by table order.
var docTypeKeywords = []struct {
	docType  constants.DocumentType
	keywords []string
}{
	{constants.DocTypeMedicalReport, []string{
		"diagnosis", "patient", "specimen", "laboratory", "lab report",
		"test results", "reference range", "physician",
	}},
	{constants.DocTypePrescription, []string{
		"dose", "dosage", "pharmacy", "rx", "refill", "prescribed",
		"tablet", "capsule", "take one",
	}},
	{constants.DocTypeInsuranceClaim, []string{
		"policy", "claim", "coverage", "insured", "deductible",
		"claimant", "premium",
	}},
	{constants.DocTypeFoodLabel, []string{
		"nutrition", "calories", "serving size", "total fat",
		"carbohydrate", "ingredients",
	}},
}

// ClassifyDocumentType maps recognized text onto a document type.
// Pure and deterministic: identical text always classifies identically.
func (p *Processor) ClassifyDocumentType(text string) constants.DocumentType {
	return ClassifyText(text)
}

// ClassifyText is the keyword-table lookup behind ClassifyDocumentType.
func ClassifyText(text string) constants.DocumentType {
	lower := strings.ToLower(text)

	best := constants.DocTypeGeneric
	bestHits := 0
	for _, entry := range docTypeKeywords {
		hits := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = entry.docType
			bestHits = hits
		}
	}
	if bestHits > 0 {
		return best
	}

	if looksLikeSpreadsheet(text) {
		return constants.DocTypeSpreadsheet
	}
	return constants.DocTypeGeneric
}

// looksLikeSpreadsheet checks for column regularity: a majority of
// non-empty lines split into the same number of 2+ columns.
func looksLikeSpreadsheet(text string) bool {
	lines := strings.Split(text, "\n")
	colCounts := map[int]int{}
	nonEmpty := 0
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		nonEmpty++
		cols := columnCount(ln)
		if cols >= 2 {
			colCounts[cols]++
		}
	}
	if nonEmpty < 3 {
		return false
	}
	for _, n := range colCounts {
		if n*2 > nonEmpty {
			return true
		}
	}
	return false
}

func columnCount(line string) int {
	if strings.Contains(line, "\t") {
		return len(strings.Split(line, "\t"))
	}
	cols := 1
	spaces := 0
	for _, r := range line {
		if r == ' ' {
			spaces++
		} else {
			if spaces >= 2 {
				cols++
			}
			spaces = 0
		}
	}
	return cols
}
