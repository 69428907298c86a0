package task

import (
	"context"
	"math/rand/v2"
	"time"
)

// FallbackPhrase is spoken when a commentary task fails.
const FallbackPhrase = "Hmm, I can't quite make that out."

var cannedLines = map[string][]string{
	"grumpy":  {"Fine. Whatever you're doing, do it quieter.", "I'm not impressed."},
	"annoyed": {"You've been staring at that for a while.", "Is this really more interesting than me?"},
	"calm":    {"Looks like you're busy. I'll just watch.", "That looks complicated."},
	"happy":   {"Ooh, what's that you're working on?", "You're doing great, keep going."},
	"excited": {"Whoa, look at all that! Can I help?", "This is the best screen I've seen all day!"},
}

// CatalogCommentator answers with a canned line chosen by mood. It stands in
// for a vision language model and simulates its latency.
type CatalogCommentator struct {
	Latency time.Duration
}

// Comment implements Commentator.
func (c CatalogCommentator) Comment(ctx context.Context, p Params) (string, error) {
	if c.Latency > 0 {
		t := time.NewTimer(c.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	lines, ok := cannedLines[p.MoodLabel]
	if !ok {
		lines = cannedLines["calm"]
	}
	return lines[rand.IntN(len(lines))], nil
}
