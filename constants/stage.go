package constants

// ProcessingStage is the pipeline state machine for a captured document.
// Transitions are monotonic forward; any stage may move directly to FAILED.
type ProcessingStage string

const (
	StageCaptured           ProcessingStage = "CAPTURED"
	StageOnDeviceVision     ProcessingStage = "ON_DEVICE_VISION"
	StageCloudOCR           ProcessingStage = "CLOUD_OCR"
	StageMultimodalAnalysis ProcessingStage = "MULTIMODAL_ANALYSIS"
	StageCompleted          ProcessingStage = "COMPLETED"
	StageFailed             ProcessingStage = "FAILED"
)

var stageOrder = map[ProcessingStage]int{
	StageCaptured:           0,
	StageOnDeviceVision:     1,
	StageCloudOCR:           2,
	StageMultimodalAnalysis: 3,
	StageCompleted:          4,
}

// CanTransition reports whether moving from one stage to another is legal.
// Forward-only; FAILED is reachable from any non-terminal stage.
func CanTransition(from, to ProcessingStage) bool {
	if from == StageCompleted || from == StageFailed {
		return false
	}
	if to == StageFailed {
		return true
	}
	fo, ok1 := stageOrder[from]
	to2, ok2 := stageOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return to2 > fo
}

// StageProgress returns the fractional progress attributed to entering a stage.
func StageProgress(s ProcessingStage) float64 {
	switch s {
	case StageCaptured:
		return 0.0
	case StageOnDeviceVision:
		return 0.2
	case StageCloudOCR:
		return 0.4
	case StageMultimodalAnalysis:
		return 0.6
	case StageCompleted:
		return 1.0
	case StageFailed:
		return 1.0
	default:
		return 0.0
	}
}
