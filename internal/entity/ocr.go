package entity

import "github.com/medscan-app/medscan/constants"

// BoundingBox is a normalized rectangle (0..1) locating an element in an image.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextBlock is one recognized unit of text.
type TextBlock struct {
	Text       string              `json:"text"`
	Type       constants.BlockType `json:"type"`
	Box        BoundingBox         `json:"box"`
	Confidence float32             `json:"confidence"`
}

// TableStructure is a recognized table with row-major cells.
type TableStructure struct {
	Rows       [][]string  `json:"rows"`
	Box        BoundingBox `json:"box"`
	Confidence float32     `json:"confidence"`
}

// BarcodeResult is a decoded barcode or QR payload.
type BarcodeResult struct {
	Payload    string      `json:"payload"`
	Symbology  string      `json:"symbology"`
	Box        BoundingBox `json:"box"`
	Confidence float32     `json:"confidence"`
}
