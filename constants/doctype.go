package constants

import "strings"

// DocumentType is the canonical classification for a captured document.
type DocumentType string

// Stable values (store these exact strings).
const (
	DocTypeMedicalReport  DocumentType = "MEDICAL_REPORT"
	DocTypePrescription   DocumentType = "PRESCRIPTION"
	DocTypeInsuranceClaim DocumentType = "INSURANCE_CLAIM"
	DocTypeFoodLabel      DocumentType = "FOOD_LABEL"
	DocTypeSpreadsheet    DocumentType = "SPREADSHEET"
	DocTypeGeneric        DocumentType = "GENERIC"
)

var allDocumentTypes = []DocumentType{
	DocTypeMedicalReport,
	DocTypePrescription,
	DocTypeInsuranceClaim,
	DocTypeFoodLabel,
	DocTypeSpreadsheet,
	DocTypeGeneric,
}

func DocumentTypesAsStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalizeDocumentType maps a free-form label to a known document type.
func CanonicalizeDocumentType(input string) (DocumentType, bool) {
	if input == "" {
		return DocTypeGeneric, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]DocumentType{
		"lab report":    DocTypeMedicalReport,
		"lab results":   DocTypeMedicalReport,
		"medical":       DocTypeMedicalReport,
		"rx":            DocTypePrescription,
		"medication":    DocTypePrescription,
		"claim":         DocTypeInsuranceClaim,
		"insurance":     DocTypeInsuranceClaim,
		"nutrition":     DocTypeFoodLabel,
		"food":          DocTypeFoodLabel,
		"table":         DocTypeSpreadsheet,
		"miscellaneous": DocTypeGeneric,
	}

	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == strings.ToLower(string(dt)) ||
			normalized == strings.ToLower(strings.ReplaceAll(string(dt), "_", " ")) {
			return dt, true
		}
	}

	return DocTypeGeneric, false
}
