// Package capture drives the camera: live boundary detection,
// perspective-corrected frame capture, quality scoring, and multi-page
// batching. The camera handle is an exclusively-owned singleton; only
// one active session may exist at a time.
package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/constants"
	"github.com/medscan-app/medscan/internal/common"
	"github.com/medscan-app/medscan/internal/entity"
)

// Frame is one preview frame from the camera feed.
type Frame struct {
	Image image.Image
	At    time.Time
}

// Camera abstracts the hardware so sessions are testable.
type Camera interface {
	Open(ctx context.Context) error
	Close() error
	Preview() <-chan Frame
	Capture(ctx context.Context) (image.Image, error)
}

// Config holds capture thresholds.
type Config struct {
	MinQuadConfidence float64 // default 0.6
	MinAspectRatio    float64 // default 0.3
	MaxAspectRatio    float64 // default 1.0
}

func (c *Config) applyDefaults() {
	if c.MinQuadConfidence <= 0 {
		c.MinQuadConfidence = 0.6
	}
	if c.MinAspectRatio <= 0 {
		c.MinAspectRatio = 0.3
	}
	if c.MaxAspectRatio <= 0 {
		c.MaxAspectRatio = 1.0
	}
}

// one camera handle process-wide
var sessionActive atomic.Bool

// Session owns the camera for its lifetime. Stop releases the hardware
// on every exit path, including error paths.
type Session struct {
	cam    Camera
	cfg    Config
	logger *slog.Logger

	overlay chan Quadrilateral
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	batchID *uuid.UUID
	pages   []entity.CapturedDocument
}

func NewSession(cam Camera, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Session{
		cam:     cam,
		cfg:     cfg,
		logger:  logger,
		overlay: make(chan Quadrilateral, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start acquires the camera and begins continuous boundary detection.
// The detection feed is visual-feedback-only; it never mutates
// committed state.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return common.ErrSessionActive
	}
	if !sessionActive.CompareAndSwap(false, true) {
		return common.ErrSessionActive
	}

	if err := s.cam.Open(ctx); err != nil {
		sessionActive.Store(false)
		if errors.Is(err, os.ErrPermission) {
			return common.NewAppError("CAPTURE_PERMISSION", "open camera", common.ErrPermissionDenied)
		}
		return common.NewAppError("CAPTURE_HARDWARE", "open camera", common.ErrHardwareUnavailable)
	}
	s.started = true

	s.wg.Add(1)
	go s.previewLoop()
	s.logger.Info("capture.session.started")
	return nil
}

// previewLoop feeds detected boundaries to the overlay channel,
// dropping frames the consumer is too slow for.
func (s *Session) previewLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case frame, ok := <-s.cam.Preview():
			if !ok {
				return
			}
			q, found := DetectQuadrilateral(frame.Image)
			if !found {
				continue
			}
			select {
			case s.overlay <- q:
			default:
			}
		}
	}
}

// Overlay is the rectangle-detection feed for UI consumption.
func (s *Session) Overlay() <-chan Quadrilateral {
	return s.overlay
}

// Stop synchronously releases the camera hardware, even if recognition
// tasks are still running. Safe to call more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	err := s.cam.Close()
	sessionActive.Store(false)
	s.wg.Wait()
	s.logger.Info("capture.session.stopped")
	return err
}

// CaptureFrame takes one frame, selects the best detected boundary,
// corrects perspective when the boundary is trustworthy, scores
// quality, and commits a CapturedDocument.
func (s *Session) CaptureFrame(ctx context.Context) (*entity.CapturedDocument, error) {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil, common.ErrHardwareUnavailable
	}
	s.mu.Unlock()

	img, err := s.cam.Capture(ctx)
	if err != nil {
		return nil, common.NewAppError("CAPTURE_FRAME", "capture frame", common.ErrHardwareUnavailable)
	}

	corrected := false
	final := img
	if q, found := DetectQuadrilateral(img); found {
		aspect := q.AspectRatio()
		if q.Confidence > s.cfg.MinQuadConfidence &&
			aspect >= s.cfg.MinAspectRatio && aspect <= s.cfg.MaxAspectRatio {
			final = CorrectPerspective(img, q)
			corrected = true
		} else {
			s.logger.Debug("capture.frame.raw_fallback",
				"confidence", q.Confidence, "aspect", aspect)
		}
	}

	score, level := ScoreQuality(final)
	retake := level == constants.QualityPoor
	if retake {
		s.logger.Warn("capture.frame.retake_recommended", "score", score)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, final); err != nil {
		return nil, common.NewAppError("CAPTURE_ENCODE", "encode frame", err)
	}

	doc := &entity.CapturedDocument{
		ID:           uuid.New(),
		ImageData:    buf.Bytes(),
		DocumentType: constants.DocTypeGeneric,
		PageCount:    1,
		Metadata: entity.CaptureMetadata{
			QualityScore:         score,
			QualityLevel:         level,
			PerspectiveCorrected: corrected,
			RetakeRecommended:    retake,
			CapturedAt:           time.Now().UTC(),
		},
		Stage: constants.StageCaptured,
	}

	s.mu.Lock()
	if s.batchID != nil {
		id := *s.batchID
		doc.BatchID = &id
		s.pages = append(s.pages, *doc)
	}
	s.mu.Unlock()

	s.logger.Info("capture.frame.committed",
		"document_id", doc.ID,
		"quality", string(level),
		"corrected", corrected,
	)
	return doc, nil
}

// EnableBatch begins accumulating pages under one batch identity.
func (s *Session) EnableBatch() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchID == nil {
		id := uuid.New()
		s.batchID = &id
		s.pages = nil
	}
	return *s.batchID
}

// AddPage captures one more page into the active batch. Capture works
// identically per page.
func (s *Session) AddPage(ctx context.Context) (*entity.CapturedDocument, error) {
	s.mu.Lock()
	if s.batchID == nil {
		s.mu.Unlock()
		return nil, common.NewAppError("CAPTURE_BATCH", "batch mode not enabled", common.ErrInvalidInput)
	}
	s.mu.Unlock()
	return s.CaptureFrame(ctx)
}

// FinalizeBatch closes the batch and returns its pages.
func (s *Session) FinalizeBatch() (*entity.DocumentBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchID == nil {
		return nil, common.NewAppError("CAPTURE_BATCH", "batch mode not enabled", common.ErrInvalidInput)
	}
	batch := &entity.DocumentBatch{
		ID:        *s.batchID,
		Pages:     s.pages,
		Finalized: true,
	}
	if len(batch.Pages) > 0 {
		batch.StartedAt = batch.Pages[0].Metadata.CapturedAt
	}
	for i := range batch.Pages {
		batch.Pages[i].PageCount = len(batch.Pages)
	}
	s.batchID = nil
	s.pages = nil
	s.logger.Info("capture.batch.finalized", "batch_id", batch.ID, "pages", len(batch.Pages))
	return batch, nil
}
