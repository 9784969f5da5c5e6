// Package telemetry holds per-session emotion and attention telemetry.
//
// Samples arrive from an external visual-analysis collaborator at
// roughly 5 Hz. The Window type keeps a bounded rolling buffer of the
// most recent samples; tactical analysis only ever reads the last few.
package telemetry

import "github.com/parleylabs/parley/pkg/jsontime"

// Sample is one telemetry frame. All intensity values are percentages
// in [0, 100].
type Sample struct {
	Timestamp jsontime.Millis `json:"timestamp"`

	Happy     float64 `json:"happy"`
	Sad       float64 `json:"sad"`
	Angry     float64 `json:"angry"`
	Surprised float64 `json:"surprised"`
	Fearful   float64 `json:"fearful"`
	Disgusted float64 `json:"disgusted"`
	Neutral   float64 `json:"neutral"`

	Attention  float64 `json:"attention"`
	Engagement float64 `json:"engagement"`
	Confidence float64 `json:"confidence"`
	Stress     float64 `json:"stress"`
}

// Means aggregates the five dimensions tactical analysis reads.
// Positive is the mean happy intensity.
type Means struct {
	Positive   float64
	Engagement float64
	Stress     float64
	Confidence float64
	Attention  float64
}
