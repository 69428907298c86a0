// Package command resolves free-form user commands, typed or transcribed,
// to one of the companion's actions.
package command

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/sahilm/fuzzy"

	"github.com/Iron-Ham/haunt/internal/errors"
)

// Action is a resolved command.
type Action string

const (
	Summon  Action = "summon"
	Hide    Action = "hide"
	Toggle  Action = "toggle"
	Comment Action = "comment"
	Status  Action = "status"
	Mood    Action = "mood"
)

// Actions lists every action in a stable order.
func Actions() []Action {
	return []Action{Summon, Hide, Toggle, Comment, Status, Mood}
}

// DefaultAliases maps each action to glob patterns matched against
// normalized input.
func DefaultAliases() map[Action][]string {
	return map[Action][]string{
		Summon:  {"come*", "appear", "show yourself", "where are you*"},
		Hide:    {"go away", "bye*", "hide*", "leave*", "shoo"},
		Toggle:  {"toggle*", "switch*"},
		Comment: {"*look*screen*", "what*on*screen*", "comment*"},
		Status:  {"status*", "how are you*"},
		Mood:    {"mood*", "how do you feel*"},
	}
}

// DefaultMinScore is the lowest similarity, out of 100, that a fuzzy match
// needs to count.
const DefaultMinScore = 68

type alias struct {
	action  Action
	pattern string
	g       glob.Glob
	// phrase is the pattern with its wildcards removed, used for
	// containment and fuzzy matching.
	phrase string
}

// How a Result was found.
const (
	ByName     = "name"
	ByAlias    = "alias"
	ByContains = "contains"
	ByFuzzy    = "fuzzy"
)

// Result describes a successful match.
type Result struct {
	Action Action
	// Phrase is the action name or alias phrase that matched.
	Phrase string
	// Score is 100 for every method except fuzzy matching.
	Score int
	By    string
}

// Matcher resolves input to an Action.
type Matcher struct {
	aliases  []alias
	phrases  []alias
	minScore int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMinScore sets the fuzzy match threshold. Zero or less disables fuzzy
// matching.
func WithMinScore(n int) Option {
	return func(m *Matcher) {
		m.minScore = n
	}
}

// NewMatcher compiles the default aliases plus extra. Extra keys must be
// action names.
func NewMatcher(extra map[string][]string, opts ...Option) (*Matcher, error) {
	m := &Matcher{minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(m)
	}
	for _, a := range Actions() {
		m.phrases = append(m.phrases, alias{action: a, phrase: string(a)})
		for _, p := range DefaultAliases()[a] {
			if err := m.add(a, p); err != nil {
				return nil, err
			}
		}
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		action, ok := ParseAction(k)
		if !ok {
			return nil, fmt.Errorf("%w: alias group %q", errors.ErrUnknownCommand, k)
		}
		for _, p := range extra[k] {
			if err := m.add(action, p); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Matcher) add(a Action, pattern string) error {
	pattern = NormalizePattern(pattern)
	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid alias %q for %s: %w", pattern, a, err)
	}
	al := alias{action: a, pattern: pattern, g: g, phrase: Normalize(pattern)}
	m.aliases = append(m.aliases, al)
	if al.phrase != "" {
		m.phrases = append(m.phrases, al)
	}
	return nil
}

// Match resolves input to an action.
func (m *Matcher) Match(input string) (Action, error) {
	r, err := m.Resolve(input)
	if err != nil {
		return "", err
	}
	return r.Action, nil
}

// Resolve matches input in four passes, stopping at the first hit:
// an exact action name, an alias pattern in registration order, the longest
// action name or alias phrase contained in the input as whole words, and
// finally the most similar phrase that scores at least the threshold.
func (m *Matcher) Resolve(input string) (Result, error) {
	text := Normalize(input)
	if text == "" {
		return Result{}, fmt.Errorf("%w: empty command", errors.ErrUnknownCommand)
	}
	if a, ok := ParseAction(text); ok {
		return Result{Action: a, Phrase: string(a), Score: 100, By: ByName}, nil
	}
	for _, al := range m.aliases {
		if al.g.Match(text) {
			return Result{Action: al.action, Phrase: al.pattern, Score: 100, By: ByAlias}, nil
		}
	}
	if r, ok := m.contained(text); ok {
		return r, nil
	}
	if r, ok := m.fuzzy(text); ok {
		return r, nil
	}
	return Result{}, fmt.Errorf("%w: %q", errors.ErrUnknownCommand, input)
}

func (m *Matcher) contained(text string) (Result, bool) {
	padded := " " + text + " "
	var best *alias
	for i := range m.phrases {
		p := &m.phrases[i]
		if !strings.Contains(padded, " "+p.phrase+" ") {
			continue
		}
		if best == nil || len(p.phrase) > len(best.phrase) {
			best = p
		}
	}
	if best == nil {
		return Result{}, false
	}
	return Result{Action: best.action, Phrase: best.phrase, Score: 100, By: ByContains}, true
}

// fuzzy finds phrases that contain the input's characters in order and
// scores them by how much of both strings the match covers.
func (m *Matcher) fuzzy(text string) (Result, bool) {
	if m.minScore <= 0 {
		return Result{}, false
	}
	candidates := make([]string, len(m.phrases))
	for i, p := range m.phrases {
		candidates[i] = p.phrase
	}

	var best Result
	for _, match := range fuzzy.Find(text, candidates) {
		score := similarity(text, match.Str)
		if score > best.Score {
			p := m.phrases[match.Index]
			best = Result{Action: p.action, Phrase: p.phrase, Score: score, By: ByFuzzy}
		}
	}
	if best.Score < m.minScore {
		return Result{}, false
	}
	return best, true
}

// similarity scores a subsequence match of query in phrase from 0 to 100.
// Every query rune is matched, so this is 2*matched/total.
func similarity(query, phrase string) int {
	q := utf8.RuneCountInString(query)
	total := q + utf8.RuneCountInString(phrase)
	if total == 0 {
		return 0
	}
	return 200 * q / total
}

// ParseAction matches an exact action name.
func ParseAction(s string) (Action, bool) {
	s = Normalize(s)
	for _, a := range Actions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Normalize lower-cases s, turns punctuation and symbols into spaces, and
// collapses whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePattern lower-cases an alias pattern and collapses whitespace,
// keeping its glob syntax.
func NormalizePattern(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
