// Package presence derives a tri-state judgment of whether the user is at
// the machine from idle time and optional camera samples.
package presence

import (
	"time"
)

// Judgment is the classifier output.
type Judgment int

const (
	// PresentActive means the user is interacting with the machine.
	PresentActive Judgment = iota
	// PresentPassive means the user is idle but still at the machine.
	PresentPassive
	// Absent means the user has left.
	Absent
)

// String returns the upper-case name of the judgment.
func (j Judgment) String() string {
	switch j {
	case PresentActive:
		return "PRESENT_ACTIVE"
	case PresentPassive:
		return "PRESENT_PASSIVE"
	case Absent:
		return "ABSENT"
	default:
		return "UNKNOWN"
	}
}

const (
	// ActiveWindow is how recent input or command activity must be to count
	// as active use.
	ActiveWindow = 60 * time.Second
	// AbsentThreshold is the idle time after which the user may be absent.
	AbsentThreshold = 300 * time.Second
	// AbsentFrames is the number of consecutive face-absent frames that
	// confirm absence when a camera is running.
	AbsentFrames = 30
	// SampleFreshness is the maximum age of a usable camera sample.
	SampleFreshness = 5 * time.Second
)

// Sample is one camera-derived observation.
type Sample struct {
	At           time.Time `json:"at"`
	FaceDetected bool      `json:"face_detected"`
	// FaceX is the horizontal face position in [-1, 1].
	FaceX      float64 `json:"face_x"`
	FaceY      float64 `json:"face_y"`
	Confidence float64 `json:"confidence"`
	// Expression is a label such as "happy", "neutral" or "angry".
	Expression string  `json:"expression"`
	Score      float64 `json:"score"`
}

// Input holds everything Classify looks at.
type Input struct {
	// Idle is the user-input idle time as reported by the idle source.
	Idle time.Duration
	// Sample is the latest camera sample, or nil when no camera is running.
	Sample *Sample
	// AbsentFrames is the count of consecutive face-absent frames.
	AbsentFrames int
	// SinceInput is the time since the last observed user activity.
	SinceInput time.Duration
	// SinceCommand is the time since the last user command.
	SinceCommand time.Duration
	// Now is the evaluation time, used to age Sample.
	Now time.Time
	// Freshness overrides SampleFreshness when positive.
	Freshness time.Duration
}

// Classify judges presence. Rules are evaluated in order:
//
//  1. recent input (SinceInput or Idle under ActiveWindow) is ACTIVE, even
//     if the idle computation claims otherwise;
//  2. a fresh sample showing a face is PASSIVE;
//  3. a long idle with no camera, or with AbsentFrames face-absent frames,
//     and no recent command is ABSENT;
//  4. anything else is PASSIVE.
func Classify(in Input) Judgment {
	if in.SinceInput < ActiveWindow || in.Idle < ActiveWindow {
		return PresentActive
	}

	freshness := SampleFreshness
	if in.Freshness > 0 {
		freshness = in.Freshness
	}
	fresh := in.Sample != nil && in.Now.Sub(in.Sample.At) < freshness
	if fresh && in.Sample.FaceDetected {
		return PresentPassive
	}

	if in.Idle >= AbsentThreshold && in.SinceCommand >= ActiveWindow {
		if !fresh || in.AbsentFrames >= AbsentFrames {
			return Absent
		}
	}
	return PresentPassive
}
