// Package resource decides which expensive collaborators (camera vision and
// the language model) may run right now.
package resource

import (
	"sync"
	"time"
)

// DialogKeepAlive is how long the language model stays up after the last
// dialog activity.
const DialogKeepAlive = 5 * time.Minute

// Plan says which collaborators may run.
type Plan struct {
	CV  bool `json:"cv"`
	LLM bool `json:"llm"`
}

// Scheduler resolves Plans. It is safe for concurrent use.
type Scheduler struct {
	mu         sync.Mutex
	lastDialog time.Time
}

// NewScheduler returns a Scheduler with no dialog history.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// MarkDialog records dialog activity at now.
func (s *Scheduler) MarkDialog(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDialog = now
}

// Resolve returns the plan for now. A fullscreen application turns
// everything off; otherwise vision runs and the language model runs while a
// dialog is recent.
func (s *Scheduler) Resolve(fullscreen bool, now time.Time) Plan {
	if fullscreen {
		return Plan{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	llm := !s.lastDialog.IsZero() && !now.After(s.lastDialog.Add(DialogKeepAlive))
	return Plan{CV: true, LLM: llm}
}
