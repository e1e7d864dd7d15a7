// Package workspace holds the persisted shape of a production workspace:
// the four phases, their drafts and lock flags, the per-tool chat
// transcripts and the project identity fields.
package workspace

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Phase string

const (
	PhaseDevelopment   Phase = "DEVELOPMENT"
	PhasePreProduction Phase = "PRE_PRODUCTION"
	PhaseOnSet         Phase = "ON_SET"
	PhasePost          Phase = "POST"
)

// Phases returns the production phases in workflow order.
func Phases() []Phase {
	return []Phase{PhaseDevelopment, PhasePreProduction, PhaseOnSet, PhasePost}
}

func (p Phase) Valid() bool {
	switch p {
	case PhaseDevelopment, PhasePreProduction, PhaseOnSet, PhasePost:
		return true
	default:
		return false
	}
}

type Persona string

const (
	PersonaStills Persona = "STILLS"
	PersonaMotion Persona = "MOTION"
	PersonaHybrid Persona = "HYBRID"
)

// NormalizePersona upper-cases value and drops anything outside the three
// known personas.
func NormalizePersona(value string) Persona {
	persona := Persona(strings.ToUpper(strings.TrimSpace(value)))
	switch persona {
	case PersonaStills, PersonaMotion, PersonaHybrid:
		return persona
	default:
		return ""
	}
}

// PhaseState is the lock flag plus the serialized version stack per tool.
type PhaseState struct {
	Locked bool              `json:"locked"`
	Drafts map[string]string `json:"drafts"`
}

func (p PhaseState) Clone() PhaseState {
	drafts := make(map[string]string, len(p.Drafts))
	for key, value := range p.Drafts {
		drafts[key] = value
	}
	return PhaseState{Locked: p.Locked, Drafts: drafts}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Identity is the project-level metadata shown on the dashboard.
type Identity struct {
	ClientName  string  `json:"clientName"`
	Persona     Persona `json:"persona"`
	ProjectName string  `json:"projectName"`
	Producer    string  `json:"producer"`
}

// State is stored verbatim as Project.data.
type State struct {
	ActivePhase Phase                    `json:"activePhase"`
	ActiveTool  string                   `json:"activeTool"`
	Phases      map[Phase]PhaseState     `json:"phases"`
	Chat        map[string][]ChatMessage `json:"chat"`
	ClientName  string                   `json:"clientName"`
	Persona     Persona                  `json:"persona"`
	ProjectName string                   `json:"projectName"`
	Producer    string                   `json:"producer"`
	FolderID    string                   `json:"folderId,omitempty"`
}

// Default returns the initial state. The caller supplies the first tool of
// the development phase so this package stays free of the tool registry.
func Default(firstTool string) State {
	phases := make(map[Phase]PhaseState, 4)
	for _, phase := range Phases() {
		phases[phase] = PhaseState{Drafts: map[string]string{}}
	}
	return State{
		ActivePhase: PhaseDevelopment,
		ActiveTool:  firstTool,
		Phases:      phases,
		Chat:        map[string][]ChatMessage{},
	}
}

// Parse decodes a persisted Project.data blob. Missing maps are
// initialised, but missing phases are left absent: a state whose active
// phase is gone is reported by the editor rather than repaired here.
func Parse(raw []byte) (State, error) {
	var state State
	if len(raw) == 0 {
		return state, fmt.Errorf("parse workspace: empty data")
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("parse workspace: %w", err)
	}
	if state.Phases == nil {
		state.Phases = map[Phase]PhaseState{}
	}
	for phase, ps := range state.Phases {
		if ps.Drafts == nil {
			ps.Drafts = map[string]string{}
			state.Phases[phase] = ps
		}
	}
	if state.Chat == nil {
		state.Chat = map[string][]ChatMessage{}
	}
	return state, nil
}

func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func (s State) Identity() Identity {
	return Identity{
		ClientName:  s.ClientName,
		Persona:     s.Persona,
		ProjectName: s.ProjectName,
		Producer:    s.Producer,
	}
}

// Clone deep-copies maps and slices so snapshots can be handed out safely.
func (s State) Clone() State {
	out := s
	out.Phases = make(map[Phase]PhaseState, len(s.Phases))
	for phase, ps := range s.Phases {
		out.Phases[phase] = ps.Clone()
	}
	out.Chat = make(map[string][]ChatMessage, len(s.Chat))
	for tool, messages := range s.Chat {
		out.Chat[tool] = append([]ChatMessage(nil), messages...)
	}
	return out
}

// LockedPhases lists locked phases in workflow order.
func (s State) LockedPhases() []Phase {
	locked := make([]Phase, 0)
	for _, phase := range Phases() {
		if ps, ok := s.Phases[phase]; ok && ps.Locked {
			locked = append(locked, phase)
		}
	}
	return locked
}
