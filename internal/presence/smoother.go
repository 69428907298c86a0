package presence

import (
	"slices"
	"strings"
)

// Expression labels understood by the smoother.
const (
	ExpressionHappy   = "happy"
	ExpressionNeutral = "neutral"
	ExpressionAngry   = "angry"
)

var expressions = []string{ExpressionHappy, ExpressionNeutral, ExpressionAngry}

const (
	// Alpha is the EMA smoothing factor.
	Alpha = 0.3
	// minStableScore is the smoothed score a label needs to become stable.
	minStableScore = 0.35
)

// Smoother keeps an exponential moving average per expression label and
// counts consecutive face-absent frames. It is not safe for concurrent use;
// the engine owns it.
type Smoother struct {
	scores       map[string]float64
	stable       string
	absentFrames int
}

// NewSmoother returns a Smoother whose stable expression is neutral.
func NewSmoother() *Smoother {
	s := &Smoother{}
	s.Reset()
	return s
}

// Reset clears all smoothing state.
func (s *Smoother) Reset() {
	s.scores = make(map[string]float64, len(expressions))
	for _, e := range expressions {
		s.scores[e] = 0
	}
	s.stable = ExpressionNeutral
	s.absentFrames = 0
}

// Observe feeds one sample and reports the stable expression and whether it
// changed with this sample.
func (s *Smoother) Observe(sample Sample) (string, bool) {
	if sample.FaceDetected {
		s.absentFrames = 0
	} else {
		s.absentFrames++
	}

	label := strings.ToLower(strings.TrimSpace(sample.Expression))
	score := sample.Score
	if !sample.FaceDetected || !slices.Contains(expressions, label) {
		label = ExpressionNeutral
		score = 1
	}
	score = min(max(score, 0), 1)

	for _, e := range expressions {
		target := 0.0
		if e == label {
			target = score
		}
		s.scores[e] = Alpha*target + (1-Alpha)*s.scores[e]
	}

	winner := s.stable
	for _, e := range expressions {
		if s.scores[e] > s.scores[winner] {
			winner = e
		}
	}
	if winner == s.stable || s.scores[winner] < minStableScore {
		return s.stable, false
	}
	s.stable = winner
	return s.stable, true
}

// Stable returns the current stable expression.
func (s *Smoother) Stable() string {
	return s.stable
}

// AbsentFrames returns the number of consecutive face-absent samples.
func (s *Smoother) AbsentFrames() int {
	return s.absentFrames
}

// Score returns the smoothed score for label.
func (s *Smoother) Score(label string) float64 {
	return s.scores[label]
}
