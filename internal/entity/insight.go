package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
)

// OnDeviceResult is the output of the on-device vision processor.
// Always present in a completed pipeline run.
type OnDeviceResult struct {
	Text         string          `json:"text"`
	RedactedText string          `json:"redacted_text,omitempty"`
	Blocks       []TextBlock     `json:"blocks,omitempty"`
	Barcodes     []BarcodeResult `json:"barcodes,omitempty"`
	Language     string          `json:"language"`
	Confidence   float32         `json:"confidence"`
	Duration     time.Duration   `json:"duration"`
}

// CloudOCRResult is the output of the high-fidelity cloud OCR provider.
type CloudOCRResult struct {
	Text       string           `json:"text"`
	Blocks     []TextBlock      `json:"blocks,omitempty"`
	Tables     []TableStructure `json:"tables,omitempty"`
	Language   string           `json:"language"`
	Confidence float32          `json:"confidence"`
	Duration   time.Duration    `json:"duration"`
}

// ComplianceCheck is one rule evaluation reported by the compliance analyzer.
type ComplianceCheck struct {
	Rule     string                     `json:"rule"`
	Status   constants.ComplianceStatus `json:"status"`
	Severity string                     `json:"severity"`
}

// CodedFinding is a coded clinical concept (e.g. LOINC/SNOMED).
type CodedFinding struct {
	System     string  `json:"system"`
	Code       string  `json:"code"`
	Display    string  `json:"display"`
	Confidence float32 `json:"confidence"`
}

// RiskFlag is a provider-raised risk with remediation guidance.
type RiskFlag struct {
	Category        string   `json:"category"`
	Severity        string   `json:"severity"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// VisionAnalysisResult is the output of one cloud vision analyzer.
// The compliance-capable analyzer populates the extended fields.
type VisionAnalysisResult struct {
	Provider    string        `json:"provider"`
	Summary     string        `json:"summary"`
	Insights    []string      `json:"insights,omitempty"`
	ActionItems []string      `json:"action_items,omitempty"`
	Entities    []string      `json:"entities,omitempty"`
	Confidence  float32       `json:"confidence"`
	Duration    time.Duration `json:"duration"`

	SecondLanguageSummary string            `json:"second_language_summary,omitempty"`
	ComplianceChecks      []ComplianceCheck `json:"compliance_checks,omitempty"`
	CodedFindings         []CodedFinding    `json:"coded_findings,omitempty"`
	RiskFlags             []RiskFlag        `json:"risk_flags,omitempty"`
}

// CapturedInsight is the aggregate result for one captured document.
// OverallConfidence is always derived as the mean of present provider
// confidences, never set directly.
type CapturedInsight struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`

	UnifiedText    string                 `json:"unified_text"`
	UnifiedSummary string                 `json:"unified_summary"`
	DocumentType   constants.DocumentType `json:"document_type"`

	Entities    []string `json:"entities,omitempty"`
	ActionItems []string `json:"action_items,omitempty"`

	OnDevice    *OnDeviceResult         `json:"on_device,omitempty"`
	CloudOCR    *CloudOCRResult         `json:"cloud_ocr,omitempty"`
	Insight     *VisionAnalysisResult   `json:"insight,omitempty"`
	Compliance  *VisionAnalysisResult   `json:"compliance,omitempty"`
	Template    *TemplateAnalysisResult `json:"template,omitempty"`

	OverallConfidence     float32                    `json:"overall_confidence"`
	ComplianceStatus      constants.ComplianceStatus `json:"compliance_status"`
	PHIRedacted           bool                       `json:"phi_redacted"`
	DeferredCloudAnalysis bool                       `json:"deferred_cloud_analysis"`

	CreatedAt time.Time `json:"created_at"`
}

// ProviderConfidences returns the confidences of all present providers.
func (i *CapturedInsight) ProviderConfidences() []float32 {
	var confs []float32
	if i.OnDevice != nil {
		confs = append(confs, i.OnDevice.Confidence)
	}
	if i.CloudOCR != nil {
		confs = append(confs, i.CloudOCR.Confidence)
	}
	if i.Insight != nil {
		confs = append(confs, i.Insight.Confidence)
	}
	if i.Compliance != nil {
		confs = append(confs, i.Compliance.Confidence)
	}
	return confs
}

// AuditEvent records an access to a captured insight for the audit sink.
type AuditEvent struct {
	DocumentID uuid.UUID         `json:"document_id"`
	AccessType string            `json:"access_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
