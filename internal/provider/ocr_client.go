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

// OCRClient calls the high-fidelity cloud OCR provider.
type OCRClient struct {
	*httpClient
}

func NewOCRClient(cfg common.ProviderConfig, logger *slog.Logger) *OCRClient {
	return &OCRClient{httpClient: newHTTPClient("cloud-ocr", cfg, logger)}
}

func (c *OCRClient) Name() string { return c.name }

// wire shapes, private to this client
type ocrRequestBody struct {
	Image    string `json:"image"`
	Language string `json:"language,omitempty"`
}

type ocrResponseBody struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float32 `json:"confidence"`
	Blocks     []struct {
		Text       string             `json:"text"`
		Type       string             `json:"type"`
		BBox       entity.BoundingBox `json:"bbox"`
		Confidence float32            `json:"confidence"`
	} `json:"blocks"`
	Tables []struct {
		Rows       [][]string         `json:"rows"`
		BBox       entity.BoundingBox `json:"bbox"`
		Confidence float32            `json:"confidence"`
	} `json:"tables"`
}

// RecognizeDocument sends the image for OCR and maps the validated
// response onto the structured result shape.
func (c *OCRClient) RecognizeDocument(ctx context.Context, req OCRRequest) (*entity.CloudOCRResult, error) {
	start := time.Now()

	body := ocrRequestBody{
		Image:    base64.StdEncoding.EncodeToString(req.ImageData),
		Language: req.Language,
	}
	raw, err := c.callWithRetry(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/ocr", body)
	if err != nil {
		return nil, err
	}

	var resp ocrResponseBody
	if err := validateAndDecode(c.name, compiledOCRSchema, raw, &resp); err != nil {
		c.logger.Warn("provider.ocr.parse_error", "error", err)
		return nil, err
	}

	result := &entity.CloudOCRResult{
		Text:       resp.Text,
		Language:   resp.Language,
		Confidence: resp.Confidence,
		Duration:   time.Since(start),
	}
	for _, b := range resp.Blocks {
		result.Blocks = append(result.Blocks, entity.TextBlock{
			Text:       b.Text,
			Type:       mapBlockType(b.Type),
			Box:        b.BBox,
			Confidence: b.Confidence,
		})
	}
	for _, t := range resp.Tables {
		result.Tables = append(result.Tables, entity.TableStructure{
			Rows:       t.Rows,
			Box:        t.BBox,
			Confidence: t.Confidence,
		})
	}

	c.logger.Info("provider.ocr.ok",
		"blocks", len(result.Blocks),
		"tables", len(result.Tables),
		"confidence", result.Confidence,
		"elapsed_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func mapBlockType(s string) constants.BlockType {
	switch strings.ToLower(s) {
	case "heading":
		return constants.BlockHeading
	case "list":
		return constants.BlockList
	case "table":
		return constants.BlockTable
	case "signature":
		return constants.BlockSignature
	case "stamp":
		return constants.BlockStamp
	default:
		return constants.BlockParagraph
	}
}
