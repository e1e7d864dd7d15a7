package editor

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"frameline/api/internal/doctype"
	"frameline/api/internal/localstore"
	"frameline/api/internal/reconcile"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

type recordingPersister struct {
	mu     sync.Mutex
	states []workspace.State
	err    error
}

func (p *recordingPersister) Persist(_ context.Context, state workspace.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
	return p.err
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func headOf(t *testing.T, state workspace.State, phase workspace.Phase, tool string) map[string]any {
	t.Helper()
	stack := versionstack.Decode(state.Phases[phase].Drafts[tool])
	head, ok := versionstack.Object(stack[0])
	if !ok {
		t.Fatalf("head of %s/%s is not an object: %s", phase, tool, stack[0])
	}
	return head
}

func TestSetPhaseSelectsFirstTool(t *testing.T) {
	p := &recordingPersister{}
	c := New(DefaultState(), p)
	ctx := context.Background()

	if err := c.SetPhase(ctx, workspace.PhaseOnSet); err != nil {
		t.Fatalf("set phase: %v", err)
	}
	snap := c.Snapshot()
	if snap.ActivePhase != workspace.PhaseOnSet || snap.ActiveTool != doctype.OnSetNotes {
		t.Fatalf("active = %s/%s", snap.ActivePhase, snap.ActiveTool)
	}
	if p.count() != 1 {
		t.Fatalf("persist calls = %d, want 1", p.count())
	}

	if err := c.SetPhase(ctx, workspace.Phase("WRAP")); !errors.Is(err, ErrUnknownPhase) {
		t.Fatalf("expected ErrUnknownPhase, got %v", err)
	}
}

func TestSetToolDoesNotCheckPhaseMembership(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()
	if err := c.SetTool(ctx, doctype.Budget); err != nil {
		t.Fatalf("set tool: %v", err)
	}
	if got := c.Snapshot().ActiveTool; got != doctype.Budget {
		t.Fatalf("active tool = %s", got)
	}
	if err := c.SetTool(ctx, "not-a-tool"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestSaveDraftForActiveToolPersists(t *testing.T) {
	p := &recordingPersister{}
	c := New(DefaultState(), p)

	result, err := c.SaveDraftForActiveTool(context.Background(), "**Objective:** Launch campaign\n**Tone:** Bold")
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if result.Outcome != reconcile.OutcomeFields {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	want := map[string]any{"objective": "Launch campaign", "tone": "Bold"}
	if got := headOf(t, c.Snapshot(), workspace.PhaseDevelopment, doctype.Brief); !reflect.DeepEqual(got, want) {
		t.Fatalf("head = %v, want %v", got, want)
	}
	if p.count() != 1 {
		t.Fatalf("persist calls = %d, want 1", p.count())
	}
	persisted := p.states[0]
	if got := headOf(t, persisted, workspace.PhaseDevelopment, doctype.Brief); !reflect.DeepEqual(got, want) {
		t.Fatalf("persisted head = %v", got)
	}
}

func TestBlankDraftIsNotPersisted(t *testing.T) {
	p := &recordingPersister{}
	c := New(DefaultState(), p)
	result, err := c.SaveDraftForActiveTool(context.Background(), "   ")
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if result.Outcome != reconcile.OutcomeUnchanged || p.count() != 0 {
		t.Fatalf("outcome = %s persist calls = %d", result.Outcome, p.count())
	}
}

func TestLockedPhaseRefusesDrafts(t *testing.T) {
	p := &recordingPersister{}
	c := New(DefaultState(), p)
	ctx := context.Background()

	if _, err := c.SaveDraftForActiveTool(ctx, `{"objective":"X"}`); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if err := c.LockPhase(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	before := c.Snapshot().Phases[workspace.PhaseDevelopment].Drafts[doctype.Brief]

	inputs := []string{`{"objective":"Y"}`, `[{}]`, "**Tone:** Loud", "free text"}
	for _, input := range inputs {
		result, err := c.SaveDraftForActiveTool(ctx, input)
		if !errors.Is(err, ErrPhaseLocked) {
			t.Fatalf("input %q: expected ErrPhaseLocked, got %v", input, err)
		}
		if result.Outcome != reconcile.OutcomeLocked {
			t.Fatalf("input %q: outcome = %s", input, result.Outcome)
		}
	}
	if _, err := c.ApplyVersionAction(ctx, versionstack.Action{Type: versionstack.ActionNew}); !errors.Is(err, ErrPhaseLocked) {
		t.Fatalf("version action: expected ErrPhaseLocked, got %v", err)
	}
	if after := c.Snapshot().Phases[workspace.PhaseDevelopment].Drafts[doctype.Brief]; after != before {
		t.Fatalf("draft changed while locked: %s -> %s", before, after)
	}

	if err := c.UnlockPhase(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := c.SaveDraftForActiveTool(ctx, `{"objective":"Y"}`); err != nil {
		t.Fatalf("save after unlock: %v", err)
	}
}

func TestLockIsPerPhase(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()
	if err := c.LockPhase(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := c.SaveDraft(ctx, workspace.PhasePreProduction, doctype.Budget, `{"currency":"EUR"}`); err != nil {
		t.Fatalf("save into unlocked phase: %v", err)
	}
	if got := c.Snapshot().LockedPhases(); !reflect.DeepEqual(got, []workspace.Phase{workspace.PhaseDevelopment}) {
		t.Fatalf("locked phases = %v", got)
	}
}

func TestCorruptStateIsReportedNotRepaired(t *testing.T) {
	state := DefaultState()
	delete(state.Phases, workspace.PhaseDevelopment)
	p := &recordingPersister{}
	c := New(state, p)
	ctx := context.Background()

	if _, err := c.ActivePhaseState(); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
	if _, err := c.SaveDraftForActiveTool(ctx, `{"objective":"X"}`); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("save draft: expected ErrCorruptState, got %v", err)
	}
	if err := c.LockPhase(ctx); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("lock: expected ErrCorruptState, got %v", err)
	}
	if _, ok := c.Snapshot().Phases[workspace.PhaseDevelopment]; ok {
		t.Fatal("state was repaired implicitly")
	}
	if p.count() != 0 {
		t.Fatalf("persist calls = %d, want 0", p.count())
	}

	if err := c.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := c.ActivePhaseState(); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestResetAllClearsEverythingButFolder(t *testing.T) {
	state := DefaultState()
	state.FolderID = "folder_1"
	c := New(state, nil)
	ctx := context.Background()

	if err := c.SetIdentity(ctx, workspace.Identity{ClientName: "Acme", Persona: workspace.PersonaMotion, ProjectName: "Spot", Producer: "Ana"}); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if _, err := c.SaveDraftForActiveTool(ctx, `{"objective":"X"}`); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.AppendChat(ctx, doctype.Brief, workspace.ChatMessage{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := c.SetPhase(ctx, workspace.PhasePost); err != nil {
		t.Fatalf("phase: %v", err)
	}

	if err := c.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got := c.Snapshot()
	want := DefaultState()
	want.FolderID = "folder_1"
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reset state = %+v, want %+v", got, want)
	}
}

func TestSetIdentityNormalizesPersona(t *testing.T) {
	c := New(DefaultState(), nil)
	if err := c.SetIdentity(context.Background(), workspace.Identity{ClientName: "Acme", Persona: "DRONE"}); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if got := c.Snapshot().Identity(); got.ClientName != "Acme" || got.Persona != "" {
		t.Fatalf("identity = %+v", got)
	}
}

func TestApplyVersionActionOnCollection(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()
	if err := c.SetPhase(ctx, workspace.PhaseOnSet); err != nil {
		t.Fatalf("phase: %v", err)
	}
	if _, err := c.SaveDraftForActiveTool(ctx, `[{"note":"a"}]`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	view, err := c.ApplyVersionAction(ctx, versionstack.Action{Type: versionstack.ActionNew})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(view.Versions) != 2 || view.ActiveIndex != 1 {
		t.Fatalf("versions = %s active = %d", versionstack.Encode(view.Versions), view.ActiveIndex)
	}
	if view.Result.Outcome != reconcile.OutcomeReplaced {
		t.Fatalf("outcome = %s", view.Result.Outcome)
	}
	if got := c.Snapshot().Phases[workspace.PhaseOnSet].Drafts[doctype.OnSetNotes]; got != `[{"note":"a"},{}]` {
		t.Fatalf("draft = %s", got)
	}
}

func TestSaveDraftTargetsCapturedTool(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()
	if err := c.SetPhase(ctx, workspace.PhasePreProduction); err != nil {
		t.Fatalf("phase: %v", err)
	}
	if _, err := c.SaveDraft(ctx, workspace.PhaseDevelopment, doctype.Lookbook, "**Keywords:** grain, neon"); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap := c.Snapshot()
	if _, ok := snap.Phases[workspace.PhasePreProduction].Drafts[doctype.Budget]; ok {
		t.Fatal("reply landed in the active tool")
	}
	want := map[string]any{"keywords": []any{"grain", "neon"}}
	if got := headOf(t, snap, workspace.PhaseDevelopment, doctype.Lookbook); !reflect.DeepEqual(got, want) {
		t.Fatalf("lookbook head = %v", got)
	}
}

func TestPersistFailureKeepsState(t *testing.T) {
	p := &recordingPersister{err: errors.New("network down")}
	c := New(DefaultState(), p)
	_, err := c.SaveDraftForActiveTool(context.Background(), `{"objective":"X"}`)
	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if got := headOf(t, c.Snapshot(), workspace.PhaseDevelopment, doctype.Brief); got["objective"] != "X" {
		t.Fatalf("head = %v", got)
	}
}

func TestSeedBudgetActualsCopiesOnce(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()

	seeded, err := c.SeedBudgetActuals(ctx)
	if err != nil || seeded {
		t.Fatalf("seed without budget = %v, %v", seeded, err)
	}

	budget := `[{"currency":"EUR","lineItems":[{"id":"li_1","category":"Crew","description":"DP","estimate":1200,"actual":0}]}]`
	if _, err := c.SaveDraft(ctx, workspace.PhasePreProduction, doctype.Budget, budget); err != nil {
		t.Fatalf("budget: %v", err)
	}
	if _, err := c.SaveDraft(ctx, workspace.PhasePost, doctype.BudgetActual, `{"notes":"wrap"}`); err != nil {
		t.Fatalf("actuals: %v", err)
	}

	seeded, err = c.SeedBudgetActuals(ctx)
	if err != nil || !seeded {
		t.Fatalf("first seed = %v, %v", seeded, err)
	}
	head := headOf(t, c.Snapshot(), workspace.PhasePost, doctype.BudgetActual)
	items, _ := head["lineItems"].([]any)
	if head["notes"] != "wrap" || len(items) != 1 {
		t.Fatalf("actuals = %v", head)
	}
	if item, _ := items[0].(map[string]any); item["estimate"] != float64(1200) || item["actual"] != float64(0) {
		t.Fatalf("line item = %v", items[0])
	}

	if _, err := c.SaveDraft(ctx, workspace.PhasePreProduction, doctype.Budget, `[{"lineItems":[{"id":"li_2","estimate":5}]}]`); err != nil {
		t.Fatalf("budget update: %v", err)
	}
	seeded, err = c.SeedBudgetActuals(ctx)
	if err != nil || seeded {
		t.Fatalf("second seed = %v, %v", seeded, err)
	}
}

func TestSeedBudgetActualsKeepsWholeLineItems(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()

	budget := `[{"lineItems":[{"id":"li_1","description":"DP","quantity":2,"rate":600,"estimate":1200,"actual":900},{"id":"li_2","estimate":"1200"}]}]`
	if _, err := c.SaveDraft(ctx, workspace.PhasePreProduction, doctype.Budget, budget); err != nil {
		t.Fatalf("budget: %v", err)
	}
	seeded, err := c.SeedBudgetActuals(ctx)
	if err != nil || !seeded {
		t.Fatalf("seed = %v, %v", seeded, err)
	}

	head := headOf(t, c.Snapshot(), workspace.PhasePost, doctype.BudgetActual)
	items, _ := head["lineItems"].([]any)
	if len(items) != 2 {
		t.Fatalf("lineItems = %v", head["lineItems"])
	}
	first, _ := items[0].(map[string]any)
	want := map[string]any{"id": "li_1", "description": "DP", "quantity": float64(2), "rate": float64(600), "estimate": float64(1200), "actual": float64(0)}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("first item = %v, want %v", first, want)
	}
	second, _ := items[1].(map[string]any)
	if second["estimate"] != "1200" || second["actual"] != float64(0) {
		t.Fatalf("second item = %v", second)
	}
}

func TestImportsFollowState(t *testing.T) {
	c := New(DefaultState(), nil)
	if got := c.Imports(); got.Schedule != nil {
		t.Fatalf("schedule import = %v", got.Schedule)
	}
	if _, err := c.SaveDraft(context.Background(), workspace.PhasePreProduction, doctype.Schedule, `[{"days":[]}]`); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := c.Imports(); got.Schedule == nil {
		t.Fatal("schedule import missing")
	}
}

func TestConcurrentSavesAreSerialized(t *testing.T) {
	c := New(DefaultState(), nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.SaveDraftForActiveTool(ctx, "another line"); err != nil {
				t.Errorf("save: %v", err)
			}
		}()
	}
	wg.Wait()
	head := headOf(t, c.Snapshot(), workspace.PhaseDevelopment, doctype.Brief)
	notes, _ := head["notes"].(string)
	if n := strings.Count(notes, "another line"); n != 20 {
		t.Fatalf("appended %d times, want 20: %v", n, head)
	}
}

func TestPersisters(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemoryStore()
	writer := &fakeWriter{}

	if _, ok := SelectPersister("", writer, local).(LocalPersister); !ok {
		t.Fatal("expected local persister without project id")
	}
	remote, ok := SelectPersister("proj_1", writer, local).(RemotePersister)
	if !ok {
		t.Fatal("expected remote persister with project id")
	}

	state := DefaultState()
	state.ProjectName = "Spot"
	if err := remote.Persist(ctx, state); err != nil {
		t.Fatalf("remote persist: %v", err)
	}
	if writer.projectID != "proj_1" {
		t.Fatalf("project id = %s", writer.projectID)
	}
	var decoded workspace.State
	if err := json.Unmarshal(writer.data, &decoded); err != nil || decoded.ProjectName != "Spot" {
		t.Fatalf("remote data = %s (%v)", writer.data, err)
	}

	if err := (LocalPersister{Store: local}).Persist(ctx, state); err != nil {
		t.Fatalf("local persist: %v", err)
	}
	loaded, err := LoadLocal(ctx, local)
	if err != nil {
		t.Fatalf("load local: %v", err)
	}
	if loaded.ProjectName != "Spot" {
		t.Fatalf("loaded = %+v", loaded)
	}

	fresh, err := LoadLocal(ctx, localstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !reflect.DeepEqual(fresh, DefaultState()) {
		t.Fatalf("fresh = %+v", fresh)
	}
}

type fakeWriter struct {
	projectID string
	data      json.RawMessage
}

func (f *fakeWriter) UpdateProjectData(_ context.Context, projectID string, data json.RawMessage) error {
	f.projectID = projectID
	f.data = data
	return nil
}
