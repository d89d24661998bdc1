package provider

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
)

// VisionClient calls one cloud vision analyzer. The compliance-capable
// analyzer returns the extended fields (bilingual summary, compliance
// checks, coded findings, risk flags); the insight analyzer leaves
// them empty. Both share one wire shape and schema.
type VisionClient struct {
	*httpClient
	path string
}

// NewInsightClient builds analyzer A: summary, insights, action items,
// entities.
func NewInsightClient(cfg common.ProviderConfig, logger *slog.Logger) *VisionClient {
	return &VisionClient{
		httpClient: newHTTPClient("vision-insight", cfg, logger),
		path:       "/v1/analyze",
	}
}

// NewComplianceClient builds analyzer B: adds the bilingual summary,
// compliance checks, coded findings, and risk flags.
func NewComplianceClient(cfg common.ProviderConfig, logger *slog.Logger) *VisionClient {
	return &VisionClient{
		httpClient: newHTTPClient("vision-compliance", cfg, logger),
		path:       "/v1/analyze",
	}
}

func (c *VisionClient) Name() string { return c.name }

type visionRequestBody struct {
	Text         string `json:"text"`
	Image        string `json:"image,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Language     string `json:"language,omitempty"`
}

type visionResponseBody struct {
	Summary               string   `json:"summary"`
	Confidence            float32  `json:"confidence"`
	Insights              []string `json:"insights"`
	ActionItems           []string `json:"action_items"`
	Entities              []string `json:"entities"`
	SecondLanguageSummary string   `json:"second_language_summary"`
	ComplianceChecks      []struct {
		Rule     string `json:"rule"`
		Status   string `json:"status"`
		Severity string `json:"severity"`
	} `json:"compliance_checks"`
	CodedFindings []struct {
		System     string  `json:"system"`
		Code       string  `json:"code"`
		Display    string  `json:"display"`
		Confidence float32 `json:"confidence"`
	} `json:"coded_findings"`
	RiskFlags []struct {
		Category        string   `json:"category"`
		Severity        string   `json:"severity"`
		Recommendations []string `json:"recommendations"`
	} `json:"risk_flags"`
}

// Analyze sends redacted text (plus the image when available) for
// semantic analysis and maps the validated response.
func (c *VisionClient) Analyze(ctx context.Context, req VisionRequest) (*entity.VisionAnalysisResult, error) {
	start := time.Now()

	body := visionRequestBody{
		Text:         req.Text,
		DocumentType: req.DocumentType,
		Language:     req.Language,
	}
	if len(req.ImageData) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(req.ImageData)
	}

	raw, err := c.callWithRetry(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+c.path, body)
	if err != nil {
		return nil, err
	}

	var resp visionResponseBody
	if err := validateAndDecode(c.name, compiledVisionSchema, raw, &resp); err != nil {
		c.logger.Warn("provider.vision.parse_error", "provider", c.name, "error", err)
		return nil, err
	}

	result := &entity.VisionAnalysisResult{
		Provider:              c.name,
		Summary:               resp.Summary,
		Insights:              resp.Insights,
		ActionItems:           resp.ActionItems,
		Entities:              resp.Entities,
		Confidence:            resp.Confidence,
		Duration:              time.Since(start),
		SecondLanguageSummary: resp.SecondLanguageSummary,
	}
	for _, cc := range resp.ComplianceChecks {
		result.ComplianceChecks = append(result.ComplianceChecks, entity.ComplianceCheck{
			Rule:     cc.Rule,
			Status:   mapComplianceStatus(cc.Status),
			Severity: cc.Severity,
		})
	}
	for _, cf := range resp.CodedFindings {
		result.CodedFindings = append(result.CodedFindings, entity.CodedFinding{
			System:     cf.System,
			Code:       cf.Code,
			Display:    cf.Display,
			Confidence: cf.Confidence,
		})
	}
	for _, rf := range resp.RiskFlags {
		result.RiskFlags = append(result.RiskFlags, entity.RiskFlag{
			Category:        rf.Category,
			Severity:        rf.Severity,
			Recommendations: rf.Recommendations,
		})
	}

	c.logger.Info("provider.vision.ok",
		"provider", c.name,
		"confidence", result.Confidence,
		"checks", len(result.ComplianceChecks),
		"elapsed_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func mapComplianceStatus(s string) constants.ComplianceStatus {
	switch strings.ToLower(s) {
	case "passed":
		return constants.CompliancePassed
	case "failed":
		return constants.ComplianceFailed
	case "warning":
		return constants.ComplianceWarning
	default:
		return constants.ComplianceNotApplicable
	}
}
