package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
)

// PowerSavingPhrase is spoken when commentary is requested but the resource
// plan has the language model switched off.
const PowerSavingPhrase = "I'm saving power right now. Ask me about the screen later."

func (e *Engine) onCommand(c Command) {
	e.lastCommand = e.clock.Now()

	match, err := e.matcher.Resolve(c.Name)
	if err != nil {
		e.logger.Info("command not recognized", "input", c.Name)
		e.reply(c, Reply{Message: err.Error(), Err: err})
		return
	}
	action := match.Action
	e.logger.Info("command received",
		"input", c.Name,
		"action", string(action),
		"matched_by", match.By,
		"score", match.Score,
	)

	r := Reply{Action: string(action), OK: true}
	switch action {
	case command.Summon:
		r.OK = e.summonNow()
		r.Message = "summoned"
		if !r.OK {
			r.Message = "cannot summon while fleeing"
		}

	case command.Hide:
		if e.machine.State().Visible() {
			e.dismiss()
			r.Message = "dismissed"
		} else {
			r.Message = "not visible"
		}

	case command.Toggle:
		r.OK, r.Message = e.toggle()

	case command.Comment:
		r.OK, r.Message = e.requestComment(strings.Join(c.Args, " "))

	case command.Status:
		snap := e.buildSnapshot()
		r.Status = &snap
		r.Message = snap.Summary()

	case command.Mood:
		r.Message = fmt.Sprintf("%s (%.2f)", e.mood.Label(), e.mood.Value())
	}
	e.reply(c, r)
}

func (e *Engine) toggle() (bool, string) {
	switch st := e.machine.State(); {
	case st == lifecycle.Hidden:
		if e.summonNow() {
			return true, "summoned"
		}
		return false, "summon failed"
	case st.Visible():
		e.dismiss()
		return true, "dismissed"
	default:
		return false, "busy fleeing"
	}
}

// requestComment starts a screen commentary. A hidden companion is
// summoned first. A newer request supersedes one still in flight.
func (e *Engine) requestComment(prompt string) (bool, string) {
	if e.machine.State() == lifecycle.Hidden && !e.trajectoryActive {
		if !e.summonNow() {
			return false, "summon failed"
		}
	}
	if e.machine.State() == lifecycle.Fleeing {
		return false, "busy fleeing"
	}

	now := e.clock.Now()
	e.resources.MarkDialog(now)
	plan := e.resources.Resolve(e.collab.Fullscreen.Fullscreen(), now)
	if !plan.LLM {
		e.logger.Info("commentary skipped by resource plan")
		e.speak(audio.Request{Text: PowerSavingPhrase, Priority: audio.High, ScriptID: "power_saving"})
		return false, "power saving"
	}

	e.adjustMood("engaged", e.mood.Engaged)
	id := e.sessions.Begin(session.VisionComment)
	e.commentInFlight = true
	e.applyVisual()
	e.collab.Tasks.Start(session.VisionComment, id, task.Params{
		Mood:      e.mood.Value(),
		MoodLabel: e.mood.Label(),
		Prompt:    prompt,
	})
	return true, fmt.Sprintf("commentary %d started", id)
}

func (e *Engine) finishComment(o task.Outcome) {
	e.commentInFlight = false
	text := strings.TrimSpace(o.Text)
	if o.Failed() || text == "" {
		reason := "empty result"
		if o.Err != nil {
			reason = o.Err.Error()
		}
		e.logger.Warn("commentary failed", "error", reason)
		text = task.FallbackPhrase
	}
	e.speak(audio.Request{Text: text, Priority: audio.High, ScriptID: "commentary"})
	e.applyVisual()
}

// reply answers without blocking the loop.
func (e *Engine) reply(c Command, r Reply) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- r:
	default:
		e.logger.Warn("command reply dropped", "input", c.Name)
	}
}
