package entity

import "github.com/medscan-app/medscan/constants"

// DetectedPHI is a personally-identifying span found in recognized text.
// Used only for redaction decisions; never persisted unredacted.
type DetectedPHI struct {
	Type       constants.PHIEntityType `json:"type"`
	Value      string                  `json:"-"`
	Start      int                     `json:"start"`
	End        int                     `json:"end"`
	Confidence float32                 `json:"confidence"`
}

// Length is the byte length of the detected span.
func (p DetectedPHI) Length() int {
	return p.End - p.Start
}
