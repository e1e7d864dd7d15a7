package fields

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractBriefSingleLabel(t *testing.T) {
	got, ok := Extract("brief", "**Objective:** Sell more widgets")
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]any{"objective": "Sell more widgets"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractReturnsFalseWithoutLabels(t *testing.T) {
	for _, text := range []string{"no labels here", "", "**Unrelated:** thing", "Objective: not bold"} {
		if got, ok := Extract("brief", text); ok {
			t.Errorf("Extract(%q) = %v, want no fields", text, got)
		}
	}
}

func TestExtractBriefSections(t *testing.T) {
	text := strings.Join([]string{
		"Here is a draft brief.",
		"",
		"**Objective:** Launch the spring campaign",
		"**Target Audience**: Gen Z commuters",
		"**TONE & STYLE:** Bold, playful",
		"**Key Message:** Ride further",
		"**Deliverables:**",
		"- 30s hero spot",
		"- 6x social cutdowns; stills package",
		"**Budget Notes:** ignored label",
	}, "\n")
	got, ok := Extract("brief", text)
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]any{
		"objective":      "Launch the spring campaign",
		"targetAudience": "Gen Z commuters",
		"tone":           "Bold, playful",
		"keyMessage":     "Ride further",
		"deliverables":   []any{"30s hero spot", "6x social cutdowns", "stills package"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %#v\nwant %#v", got, want)
	}
}

func TestExtractAliasesFirstOccurrenceWins(t *testing.T) {
	got, ok := Extract("brief", "**Tone:** Warm\n**Tone & Style:** Cold\n**Message:** Short")
	if !ok {
		t.Fatal("expected fields")
	}
	if got["tone"] != "Warm" || got["keyMessage"] != "Short" {
		t.Fatalf("Extract = %v", got)
	}
}

func TestExtractTreatmentAndLookbook(t *testing.T) {
	treatment, ok := Extract("directors-treatment", "**Narrative Arc:** From doubt to flight\n**Visual Language:** Handheld, natural light\n**Theme:** Freedom")
	if !ok {
		t.Fatal("expected treatment fields")
	}
	if treatment["narrativeArc"] != "From doubt to flight" || treatment["visualLanguage"] != "Handheld, natural light" || treatment["theme"] != "Freedom" {
		t.Fatalf("treatment = %v", treatment)
	}

	lookbook, ok := Extract("lookbook", "**Overview:** Sunlit city\n**Keywords:** grain, warmth;  ,neon")
	if !ok {
		t.Fatal("expected lookbook fields")
	}
	if !reflect.DeepEqual(lookbook["keywords"], []any{"grain", "warmth", "neon"}) {
		t.Fatalf("keywords = %#v", lookbook["keywords"])
	}
}

func TestExtractStoryboardScenes(t *testing.T) {
	got, ok := Extract("storyboard", "Opening:\n**Scene:** A rider wakes at dawn\n**Scene:** Streets empty\n**scene:**   \n**Scene:** Sunrise over the bridge")
	if !ok {
		t.Fatal("expected frames")
	}
	frames, _ := got["frames"].([]any)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	seen := map[string]bool{}
	for i, item := range frames {
		frame := item.(map[string]any)
		id, _ := frame["id"].(string)
		if !strings.HasPrefix(id, "frame_") || seen[id] {
			t.Errorf("frame %d has bad or duplicate id %q", i, id)
		}
		seen[id] = true
		if frame["shotType"] != DefaultShotType || frame["duration"] != DefaultDuration {
			t.Errorf("frame %d missing defaults: %v", i, frame)
		}
	}
	if frames[2].(map[string]any)["caption"] != "Sunrise over the bridge" {
		t.Fatalf("third caption = %v", frames[2])
	}
}

func TestExtractVisionTakesFreeText(t *testing.T) {
	got, ok := Extract("project-vision", "  A film about light.  ")
	if !ok || got["content"] != "A film about light." {
		t.Fatalf("Extract = %v, %v", got, ok)
	}
	if _, ok := Extract("project-vision", "   "); ok {
		t.Fatal("blank text should not extract")
	}
}

func TestExtractToolsWithoutLabels(t *testing.T) {
	if _, ok := Extract("call-sheet", "**Objective:** x"); ok {
		t.Fatal("call sheets have no label parser")
	}
	if _, ok := Extract("not-a-tool", "**Objective:** x"); ok {
		t.Fatal("unknown tools have no label parser")
	}
}

func TestExtractLabelAfterInlineBold(t *testing.T) {
	cases := map[string]map[string]any{
		"We want a **bold** look, notes: **Objective:** Sell widgets": {"objective": "Sell widgets"},
		"**Objective:** Sell **more** widgets **Tone:** Warm":         {"objective": "Sell **more** widgets", "tone": "Warm"},
		"A stray ** marker\n**Objective:** Sell widgets":              {"objective": "Sell widgets"},
		"- **Key Message** : Ride further":                            {"keyMessage": "Ride further"},
	}
	for text, want := range cases {
		got, ok := Extract("brief", text)
		if !ok || !reflect.DeepEqual(got, want) {
			t.Errorf("Extract(%q) = %v, %v; want %v", text, got, ok, want)
		}
	}
}

func TestExtractStoryboardNumberedScenes(t *testing.T) {
	got, ok := Extract("storyboard", "**Scene 1:** Dawn\n**Scene #2:** Streets\n**Scene 3a:** Bridge\n**Scene two:** skipped")
	if !ok {
		t.Fatal("expected frames")
	}
	frames, _ := got["frames"].([]any)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %v", frames)
	}
	for i, caption := range []string{"Dawn", "Streets", "Bridge"} {
		if frames[i].(map[string]any)["caption"] != caption {
			t.Errorf("frame %d caption = %q, want %q", i, frames[i].(map[string]any)["caption"], caption)
		}
	}
}
