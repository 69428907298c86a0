package keymap

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func TestDefault_Matches(t *testing.T) {
	km := Default()
	tests := []struct {
		name    string
		msg     tea.KeyMsg
		binding key.Binding
	}{
		{"summon", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}, km.Summon},
		{"touch", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, km.Touch},
		{"quit with ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, km.Quit},
		{"scroll with arrow", tea.KeyMsg{Type: tea.KeyDown}, km.ScrollDown},
		{"submit", tea.KeyMsg{Type: tea.KeyEnter}, km.Submit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !key.Matches(tt.msg, tt.binding) {
				t.Errorf("Expected %q to match %v", tt.msg.String(), tt.binding.Keys())
			}
		})
	}
}

func TestDefault_NoDuplicateKeys(t *testing.T) {
	km := Default()
	seen := map[string]string{}
	for _, group := range km.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				if prev, ok := seen[k]; ok {
					t.Errorf("key %q bound to both %q and %q", k, prev, b.Help().Desc)
				}
				seen[k] = b.Help().Desc
			}
		}
	}
}

func TestShortHelp_Subset(t *testing.T) {
	km := Default()
	full := map[string]bool{}
	for _, group := range km.FullHelp() {
		for _, b := range group {
			full[b.Help().Key] = true
		}
	}
	for _, b := range km.ShortHelp() {
		if !full[b.Help().Key] {
			t.Errorf("Expected short help key %q to appear in full help", b.Help().Key)
		}
	}
}
