// Package audio implements the companion's speech dispatch policy: a
// priority queue of playback requests with preemption, decoupled from how
// audio is actually synthesized or rendered.
//
// Policy:
//   - CRITICAL clears the queue and preempts whatever is playing.
//   - HIGH and NORMAL play immediately when idle, otherwise queue by
//     priority and then arrival order.
//   - LOW is dropped if anything is playing or queued.
//   - A failed item is logged and dropped; the next item is dispatched.
package audio

import (
	"container/heap"
	"fmt"
	"strings"
)

// Priority orders audio requests. Lower values play first.
type Priority int

const (
	Critical Priority = iota
	High
	Normal
	Low
)

// String returns the upper-case name of the priority.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "CRITICAL"
	case High:
		return "HIGH"
	case Normal:
		return "NORMAL"
	case Low:
		return "LOW"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

// ParsePriority converts a priority name (case-insensitive) to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return Critical, nil
	case "HIGH":
		return High, nil
	case "NORMAL", "":
		return Normal, nil
	case "LOW":
		return Low, nil
	}
	return Normal, fmt.Errorf("unknown audio priority %q", s)
}

// Request is one item to be spoken or played.
type Request struct {
	// ContentRef points at pre-rendered audio (a file path or asset id).
	ContentRef string
	// Text is the line to synthesize when ContentRef is empty.
	Text     string
	Priority Priority
	// ScriptID identifies the dialogue script that produced the request.
	ScriptID string
}

// Empty reports whether the request has nothing to play.
func (r Request) Empty() bool {
	return r.ContentRef == "" && strings.TrimSpace(r.Text) == ""
}

type queued struct {
	req Request
	seq uint64
}

// requestQueue is a container/heap ordered by priority, then arrival.
type requestQueue []queued

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].req.Priority != q[j].req.Priority {
		return q[i].req.Priority < q[j].req.Priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q *requestQueue) push(req Request, seq uint64) {
	heap.Push(q, queued{req: req, seq: seq})
}

func (q *requestQueue) pop() (Request, bool) {
	if q.Len() == 0 {
		return Request{}, false
	}
	return heap.Pop(q).(queued).req, true
}

func (q *requestQueue) clear() int {
	n := len(*q)
	*q = (*q)[:0]
	return n
}
