package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
)

func testConfig(baseURL string) common.ProviderConfig {
	return common.ProviderConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		RequestTimeout: 2 * time.Second,
		TotalTimeout:   5 * time.Second,
		MaxAttempts:    3,
	}
}

// noSleep records requested backoff delays without waiting.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestOCRClientSuccess(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"text": "Glucose: 95 mg/dL",
			"language": "en",
			"confidence": 0.97,
			"blocks": [{"text": "Glucose: 95 mg/dL", "type": "paragraph"}],
			"tables": [{"rows": [["Glucose", "95", "mg/dL"]]}]
		}`))
	}))
	defer srv.Close()

	c := NewOCRClient(testConfig(srv.URL), nil)
	res, err := c.RecognizeDocument(context.Background(), OCRRequest{ImageData: []byte("img"), Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "Glucose: 95 mg/dL" || res.Confidence != 0.97 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.Tables) != 1 || len(res.Tables[0].Rows) != 1 {
		t.Errorf("tables not mapped: %+v", res.Tables)
	}
	if got := auth.Load(); got != "Bearer test-key" {
		t.Errorf("missing bearer credential, got %v", got)
	}
}

func TestRetryOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "backend down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := NewOCRClient(testConfig(srv.URL), nil)
	c.sleep = noSleep(&delays)

	_, err := c.RecognizeDocument(context.Background(), OCRRequest{ImageData: []byte("img")})
	if err == nil {
		t.Fatal("expected failure after retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("backoff %d = %v, want %v", i, delays[i], want[i])
		}
	}

	var pe *common.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected provider error with 503, got %v", err)
	}
}

func TestNoRetryOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	var delays []time.Duration
	c := NewOCRClient(testConfig(srv.URL), nil)
	c.sleep = noSleep(&delays)

	_, err := c.RecognizeDocument(context.Background(), OCRRequest{ImageData: []byte("img")})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", got)
	}
	if len(delays) != 0 {
		t.Errorf("no backoff expected, got %v", delays)
	}
	if common.IsRetryable(err) {
		t.Errorf("4xx must be classified non-retryable: %v", err)
	}
}

func TestMalformedPayloadIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// missing the required confidence field
		w.Write([]byte(`{"text": "hello"}`))
	}))
	defer srv.Close()

	c := NewOCRClient(testConfig(srv.URL), nil)
	_, err := c.RecognizeDocument(context.Background(), OCRRequest{ImageData: []byte("img")})

	var pe *common.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if common.IsRetryable(err) {
		t.Errorf("parse errors must not be retryable")
	}
}

func TestUnreachableProviderIsNetworkError(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1") // nothing listens here
	cfg.MaxAttempts = 1
	c := NewOCRClient(cfg, nil)

	_, err := c.RecognizeDocument(context.Background(), OCRRequest{ImageData: []byte("img")})
	if !errors.Is(err, common.ErrNetworkUnavailable) {
		t.Errorf("expected network-unavailable classification, got %v", err)
	}
}

func TestVisionClientComplianceMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"summary": "Label review complete",
			"confidence": 0.88,
			"second_language_summary": "Revision completada",
			"compliance_checks": [
				{"rule": "allergen-disclosure", "status": "passed", "severity": "info"},
				{"rule": "claim-substantiation", "status": "warning", "severity": "medium"}
			],
			"coded_findings": [{"system": "LOINC", "code": "2345-7", "display": "Glucose", "confidence": 0.9}],
			"risk_flags": [{"category": "dosage", "severity": "high", "recommendations": ["verify with pharmacist"]}]
		}`))
	}))
	defer srv.Close()

	c := NewComplianceClient(testConfig(srv.URL), nil)
	res, err := c.Analyze(context.Background(), VisionRequest{Text: "redacted text"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "vision-compliance" {
		t.Errorf("unexpected provider name: %q", res.Provider)
	}
	if len(res.ComplianceChecks) != 2 {
		t.Fatalf("checks not mapped: %+v", res.ComplianceChecks)
	}
	if res.ComplianceChecks[0].Status != constants.CompliancePassed ||
		res.ComplianceChecks[1].Status != constants.ComplianceWarning {
		t.Errorf("status mapping wrong: %+v", res.ComplianceChecks)
	}
	if len(res.CodedFindings) != 1 || res.CodedFindings[0].Code != "2345-7" {
		t.Errorf("coded findings not mapped: %+v", res.CodedFindings)
	}
	if len(res.RiskFlags) != 1 || len(res.RiskFlags[0].Recommendations) != 1 {
		t.Errorf("risk flags not mapped: %+v", res.RiskFlags)
	}
	if res.SecondLanguageSummary == "" {
		t.Error("second language summary dropped")
	}
}

func TestVisionClientRejectsUnknownComplianceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"summary": "x",
			"confidence": 0.5,
			"compliance_checks": [{"rule": "r", "status": "exploded"}]
		}`))
	}))
	defer srv.Close()

	c := NewComplianceClient(testConfig(srv.URL), nil)
	_, err := c.Analyze(context.Background(), VisionRequest{Text: "t"})

	var pe *common.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("schema must reject unknown status values, got %v", err)
	}
}

func TestBackoffDelayCap(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
