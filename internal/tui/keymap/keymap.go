// Package keymap declares the console's key bindings.
package keymap

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the console reacts to.
type KeyMap struct {
	// Companion commands
	Summon  key.Binding
	Hide    key.Binding
	Toggle  key.Binding
	Comment key.Binding
	Mood    key.Binding
	Say     key.Binding

	// Simulated producers
	IdleSkip   key.Binding
	Touch      key.Binding
	Audio      key.Binding
	Face       key.Binding
	NoFace     key.Binding
	CameraFail key.Binding

	// Viewport
	ScrollUp   key.Binding
	ScrollDown key.Binding

	Help key.Binding
	Quit key.Binding

	// Text entry after Say
	Submit key.Binding
	Cancel key.Binding
}

// Default returns the standard console bindings.
func Default() KeyMap {
	return KeyMap{
		Summon:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "summon")),
		Hide:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hide")),
		Toggle:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle")),
		Comment: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comment")),
		Mood:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mood")),
		Say:     key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "say")),

		IdleSkip:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "go idle")),
		Touch:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "touch")),
		Audio:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "audio on/off")),
		Face:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "face")),
		NoFace:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no face")),
		CameraFail: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "camera fails")),

		ScrollUp:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp lists the bindings shown in the help bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Summon, k.Hide, k.Toggle, k.Comment, k.Say, k.IdleSkip, k.Audio, k.Help, k.Quit}
}

// FullHelp groups every binding for the help panel.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Summon, k.Hide, k.Toggle, k.Comment, k.Mood, k.Say},
		{k.IdleSkip, k.Touch, k.Audio, k.Face, k.NoFace, k.CameraFail},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}
