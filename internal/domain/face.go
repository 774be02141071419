package domain

// FaceSignal is one face-presence observation reported by the detection provider.
// It is ephemeral and never persisted on its own.
type FaceSignal struct {
	Present         bool `json:"present"`
	MultiplePresent bool `json:"multiplePresent"`
	Count           int  `json:"count"`
}

// NewFaceSignal derives a signal from the number of faces found in one detection cycle
func NewFaceSignal(count int) FaceSignal {
	if count < 0 {
		count = 0
	}
	return FaceSignal{
		Present:         count >= 1,
		MultiplePresent: count > 1,
		Count:           count,
	}
}
