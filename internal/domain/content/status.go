package content

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("entity not found")
)

// Machine is a status graph: forward moves by rank, failure from any live state,
// plus explicitly listed edges out of terminal states.
type Machine struct {
	Name     string
	ranks    map[string]int
	terminal map[string]bool
	failed   string
	reset    string
	edges    map[string][]string
}

func (m *Machine) Rank(s string) int {
	if r, ok := m.ranks[s]; ok {
		return r
	}
	return -1
}

func (m *Machine) Known(s string) bool {
	if s != "" && s == m.failed {
		return true
	}
	_, ok := m.ranks[s]
	return ok
}

func (m *Machine) IsTerminal(s string) bool { return m.terminal[s] }

func (m *Machine) Failed() string { return m.failed }

func (m *Machine) Reset() string { return m.reset }

// CanTransition reports whether a tracked write from -> to is legal.
// Moving out of a terminal state back to the reset state is not a transition;
// it is a re-trigger (see CanRetrigger).
func (m *Machine) CanTransition(from, to string) bool {
	if !m.Known(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, e := range m.edges[from] {
		if e == to {
			return true
		}
	}
	if m.terminal[from] {
		return false
	}
	if m.failed != "" && to == m.failed {
		return true
	}
	if m.terminal[to] {
		return false
	}
	return m.Rank(to) > m.Rank(from)
}

// CanRetrigger reports whether an explicit re-trigger may restart from s.
func (m *Machine) CanRetrigger(from string) bool {
	return from == "" || m.terminal[from]
}

// Terminals lists the states a re-trigger may restart from, sorted.
func (m *Machine) Terminals() []string {
	out := make([]string, 0, len(m.terminal))
	for s := range m.terminal {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Sources lists every state from which `to` is reachable in one tracked write.
func (m *Machine) Sources(to string) []string {
	out := make([]string, 0, len(m.ranks)+1)
	all := make([]string, 0, len(m.ranks)+1)
	for s := range m.ranks {
		all = append(all, s)
	}
	if _, ok := m.ranks[m.failed]; !ok && m.failed != "" {
		all = append(all, m.failed)
	}
	for _, s := range all {
		if m.CanTransition(s, to) {
			out = append(out, s)
		}
	}
	return out
}

// Check returns ErrInvalidTransition wrapped with context when from -> to is illegal.
func (m *Machine) Check(from, to string) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%s %q -> %q: %w", m.Name, from, to, ErrInvalidTransition)
}

type Status string

const (
	StatusPending         Status = "pending"
	StatusPlanning        Status = "planning"
	StatusResearching     Status = "researching"
	StatusWriting         Status = "writing"
	StatusEditing         Status = "editing"
	StatusGrammarChecking Status = "grammar_checking"
	StatusAnalyzing       Status = "analyzing"
	StatusDraft           Status = "draft"
	StatusApproved        Status = "approved"
	StatusFailed          Status = "failed"
)

// ContentMachine: editing and grammar_checking are alternative branches sharing a rank.
var ContentMachine = &Machine{
	Name: "content",
	ranks: map[string]int{
		string(StatusPending):         0,
		string(StatusPlanning):        1,
		string(StatusResearching):     2,
		string(StatusWriting):         3,
		string(StatusEditing):         4,
		string(StatusGrammarChecking): 4,
		string(StatusAnalyzing):       5,
		string(StatusDraft):           6,
		string(StatusApproved):        7,
	},
	terminal: map[string]bool{
		string(StatusDraft):    true,
		string(StatusApproved): true,
		string(StatusFailed):   true,
	},
	failed: string(StatusFailed),
	reset:  string(StatusPending),
	edges: map[string][]string{
		string(StatusAnalyzing): {string(StatusDraft)},
		string(StatusDraft):     {string(StatusApproved)},
	},
}

func (s Status) Rank() int { return ContentMachine.Rank(string(s)) }

func (s Status) IsTerminal() bool { return ContentMachine.IsTerminal(string(s)) }

func (s Status) Valid() bool { return ContentMachine.Known(string(s)) }

func CanTransition(from, to Status) bool {
	return ContentMachine.CanTransition(string(from), string(to))
}

type IdeaStatus string

const (
	IdeaPending  IdeaStatus = "pending"
	IdeaApproved IdeaStatus = "approved"
	IdeaRejected IdeaStatus = "rejected"
)

var IdeaMachine = &Machine{
	Name: "idea",
	ranks: map[string]int{
		string(IdeaPending):  0,
		string(IdeaApproved): 1,
		string(IdeaRejected): 1,
	},
	terminal: map[string]bool{
		string(IdeaApproved): true,
		string(IdeaRejected): true,
	},
	reset: string(IdeaPending),
	edges: map[string][]string{
		string(IdeaPending): {string(IdeaApproved), string(IdeaRejected)},
	},
}

// Agent idea-generation run statuses.
const (
	IdeaRunPlanning        = "planning"
	IdeaRunGenerating      = "generating"
	IdeaRunGrammarChecking = "grammar_checking"
	IdeaRunAnalyzing       = "analyzing"
	IdeaRunCompleted       = "completed"
	IdeaRunFailed          = "failed"
)

var IdeaRunMachine = &Machine{
	Name: "idea_run",
	ranks: map[string]int{
		IdeaRunPlanning:        1,
		IdeaRunGenerating:      2,
		IdeaRunGrammarChecking: 3,
		IdeaRunAnalyzing:       4,
		IdeaRunCompleted:       5,
	},
	terminal: map[string]bool{
		IdeaRunCompleted: true,
		IdeaRunFailed:    true,
	},
	failed: IdeaRunFailed,
	reset:  IdeaRunPlanning,
	edges: map[string][]string{
		IdeaRunAnalyzing: {IdeaRunCompleted},
	},
}

// Agent brand-document statuses.
const (
	BrandProcessing = "processing"
	BrandReady      = "ready"
	BrandFailed     = "failed"
)

var BrandMachine = &Machine{
	Name: "brand",
	ranks: map[string]int{
		BrandProcessing: 1,
		BrandReady:      2,
	},
	terminal: map[string]bool{
		BrandReady:  true,
		BrandFailed: true,
	},
	failed: BrandFailed,
	reset:  BrandProcessing,
	edges: map[string][]string{
		BrandProcessing: {BrandReady},
	},
}
