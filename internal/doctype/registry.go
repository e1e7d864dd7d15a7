// Package doctype is the registry of document types. Each tool key maps to
// one Spec describing where the tool lives, how "New" behaves, how free
// text is parsed into fields and how parsed fields are merged. Adding a
// document type means adding one entry to specs.
package doctype

import (
	"sort"

	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

type Kind string

const (
	// KindStack tools keep the newest version first.
	KindStack Kind = "stack"
	// KindCollection tools keep entries in chronological order (daily logs).
	KindCollection Kind = "collection"
	// KindHidden tools are reachable but not listed in the phase navigation.
	KindHidden Kind = "hidden"
)

// Discipline maps the tool kind to the version stack insertion rule.
func (k Kind) Discipline() versionstack.Discipline {
	if k == KindCollection {
		return versionstack.Append
	}
	return versionstack.Prepend
}

type MergeStrategy string

const (
	MergeFields       MergeStrategy = "fields"
	MergeAppendFrames MergeStrategy = "append-frames"
	MergeVisionPages  MergeStrategy = "vision-pages"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldList    FieldType = "list"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// Label is one bolded section label the field parser recognises.
type Label struct {
	Field   string
	Aliases []string
	// List splits the captured span into a string list.
	List bool
	// Repeat collects every occurrence as a separate item.
	Repeat bool
}

type Spec struct {
	Key      string
	Title    string
	Phase    workspace.Phase
	Kind     Kind
	Labels   []Label
	FreeText bool
	Merge    MergeStrategy
	Fields   map[string]FieldType
}

const (
	Brief                 = "brief"
	ProjectVision         = "project-vision"
	DirectorsTreatment    = "directors-treatment"
	Lookbook              = "lookbook"
	AVScript              = "av-script"
	Storyboard            = "storyboard"
	Budget                = "budget"
	Schedule              = "schedule"
	ShotSceneBook         = "shot-scene-book"
	CallSheet             = "call-sheet"
	CrewList              = "crew-list"
	CastingTalent         = "casting-talent"
	LocationsSets         = "locations-sets"
	WardrobeStyling       = "wardrobe-styling"
	PropsList             = "props-list"
	EquipmentList         = "equipment-list"
	OnsetMobileControl    = "onset-mobile-control"
	OnSetNotes            = "on-set-notes"
	ScriptNotes           = "script-notes"
	CameraReport          = "camera-report"
	DITLog                = "dit-log"
	SoundReport           = "sound-report"
	ClientSelects         = "client-selects"
	DeliverablesLicensing = "deliverables-licensing"
	ArchiveLog            = "archive-log"
	BudgetActual          = "budget-actual"
)

var toneLabel = Label{Field: "tone", Aliases: []string{"tone & style", "tone and style", "tone"}}

var specs = []Spec{
	{
		Key: Brief, Title: "Creative Brief", Phase: workspace.PhaseDevelopment, Kind: KindStack, Merge: MergeFields,
		Labels: []Label{
			{Field: "objective", Aliases: []string{"objective"}},
			{Field: "targetAudience", Aliases: []string{"target audience", "audience"}},
			toneLabel,
			{Field: "keyMessage", Aliases: []string{"key message", "message"}},
			{Field: "deliverables", Aliases: []string{"deliverables"}, List: true},
		},
		Fields: map[string]FieldType{
			"objective": FieldString, "targetAudience": FieldString, "tone": FieldString,
			"keyMessage": FieldString, "deliverables": FieldList, "timeline": FieldString,
			"budgetRange": FieldString, "notes": FieldString,
		},
	},
	{
		Key: ProjectVision, Title: "Project Vision", Phase: workspace.PhaseDevelopment, Kind: KindStack,
		FreeText: true, Merge: MergeVisionPages,
		Fields: map[string]FieldType{"activePageId": FieldString, "pages": FieldArray},
	},
	{
		Key: DirectorsTreatment, Title: "Director's Treatment", Phase: workspace.PhaseDevelopment, Kind: KindStack, Merge: MergeFields,
		Labels: []Label{
			{Field: "overview", Aliases: []string{"overview", "logline"}},
			{Field: "narrativeArc", Aliases: []string{"narrative arc", "narrative"}},
			{Field: "characterPhilosophy", Aliases: []string{"character philosophy", "characters"}},
			{Field: "visualLanguage", Aliases: []string{"visual language", "visual style"}},
			{Field: "theme", Aliases: []string{"theme"}},
			toneLabel,
		},
		Fields: map[string]FieldType{
			"overview": FieldString, "narrativeArc": FieldString, "characterPhilosophy": FieldString,
			"visualLanguage": FieldString, "theme": FieldString, "tone": FieldString, "notes": FieldString,
		},
	},
	{
		Key: Lookbook, Title: "Lookbook", Phase: workspace.PhaseDevelopment, Kind: KindStack, Merge: MergeFields,
		Labels: []Label{
			{Field: "overview", Aliases: []string{"overview"}},
			{Field: "keywords", Aliases: []string{"keywords"}, List: true},
			{Field: "theme", Aliases: []string{"theme"}},
			{Field: "visualLanguage", Aliases: []string{"visual language"}},
		},
		Fields: map[string]FieldType{
			"overview": FieldString, "keywords": FieldList, "theme": FieldString,
			"visualLanguage": FieldString, "images": FieldArray, "notes": FieldString,
		},
	},
	{
		Key: AVScript, Title: "A/V Script", Phase: workspace.PhaseDevelopment, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"title": FieldString, "rows": FieldArray, "notes": FieldString},
	},
	{
		Key: Storyboard, Title: "Storyboard", Phase: workspace.PhaseDevelopment, Kind: KindStack, Merge: MergeAppendFrames,
		Labels: []Label{{Field: "frames", Aliases: []string{"scene"}, Repeat: true}},
		Fields: map[string]FieldType{"frames": FieldArray, "notes": FieldString},
	},
	{
		Key: Budget, Title: "Budget", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"currency": FieldString, "lineItems": FieldArray, "total": FieldNumber, "notes": FieldString},
	},
	{
		Key: Schedule, Title: "Production Schedule", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"startDate": FieldString, "days": FieldArray, "notes": FieldString},
	},
	{
		Key: ShotSceneBook, Title: "Shot / Scene Book", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"scenes": FieldArray, "shots": FieldArray, "notes": FieldString},
	},
	{
		Key: CallSheet, Title: "Call Sheet", Phase: workspace.PhasePreProduction, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{
			"date": FieldString, "callTime": FieldString, "location": FieldString,
			"crew": FieldArray, "schedule": FieldArray, "notes": FieldString,
		},
	},
	{
		Key: CrewList, Title: "Crew List", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"members": FieldArray, "notes": FieldString},
	},
	{
		Key: CastingTalent, Title: "Casting & Talent", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"talent": FieldArray, "notes": FieldString},
	},
	{
		Key: LocationsSets, Title: "Locations & Sets", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"locations": FieldArray, "notes": FieldString},
	},
	{
		Key: WardrobeStyling, Title: "Wardrobe & Styling", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"looks": FieldArray, "notes": FieldString},
	},
	{
		Key: PropsList, Title: "Props List", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"items": FieldArray, "notes": FieldString},
	},
	{
		Key: EquipmentList, Title: "Equipment List", Phase: workspace.PhasePreProduction, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"items": FieldArray, "notes": FieldString},
	},
	{
		Key: OnsetMobileControl, Title: "On-Set Mobile Control", Phase: workspace.PhaseOnSet, Kind: KindHidden, Merge: MergeFields,
		Fields: map[string]FieldType{"currentSetup": FieldString, "shotStatus": FieldObject, "notes": FieldString},
	},
	{
		Key: OnSetNotes, Title: "On-Set Notes", Phase: workspace.PhaseOnSet, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "entries": FieldArray, "notes": FieldString},
	},
	{
		Key: ScriptNotes, Title: "Script Notes", Phase: workspace.PhaseOnSet, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "entries": FieldArray, "notes": FieldString},
	},
	{
		Key: CameraReport, Title: "Camera Report", Phase: workspace.PhaseOnSet, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "rolls": FieldArray, "notes": FieldString},
	},
	{
		Key: DITLog, Title: "DIT Log", Phase: workspace.PhaseOnSet, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "cards": FieldArray, "notes": FieldString},
	},
	{
		Key: SoundReport, Title: "Sound Report", Phase: workspace.PhaseOnSet, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "takes": FieldArray, "notes": FieldString},
	},
	{
		Key: ClientSelects, Title: "Client Selects", Phase: workspace.PhasePost, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"selections": FieldArray, "notes": FieldString},
	},
	{
		Key: DeliverablesLicensing, Title: "Deliverables & Licensing", Phase: workspace.PhasePost, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"deliverables": FieldArray, "licenses": FieldArray, "notes": FieldString},
	},
	{
		Key: ArchiveLog, Title: "Archive Log", Phase: workspace.PhasePost, Kind: KindCollection, Merge: MergeFields,
		Fields: map[string]FieldType{"date": FieldString, "entries": FieldArray, "notes": FieldString},
	},
	{
		Key: BudgetActual, Title: "Budget Actuals", Phase: workspace.PhasePost, Kind: KindStack, Merge: MergeFields,
		Fields: map[string]FieldType{"lineItems": FieldArray, "notes": FieldString},
	},
}

var byKey = func() map[string]Spec {
	out := make(map[string]Spec, len(specs))
	for _, spec := range specs {
		out[spec.Key] = spec
	}
	return out
}()

func Lookup(key string) (Spec, bool) {
	spec, ok := byKey[key]
	return spec, ok
}

// KindOf classifies a tool key. Unknown keys behave as stack tools.
func KindOf(key string) Kind {
	if spec, ok := byKey[key]; ok {
		return spec.Kind
	}
	return KindStack
}

// MergeOf returns the merge strategy. Unknown keys use MergeFields.
func MergeOf(key string) MergeStrategy {
	if spec, ok := byKey[key]; ok {
		return spec.Merge
	}
	return MergeFields
}

// ToolsFor lists the navigable tools of a phase in registry order.
func ToolsFor(phase workspace.Phase) []Spec {
	out := make([]Spec, 0)
	for _, spec := range specs {
		if spec.Phase == phase && spec.Kind != KindHidden {
			out = append(out, spec)
		}
	}
	return out
}

// FirstTool is the tool selected when entering a phase.
func FirstTool(phase workspace.Phase) string {
	tools := ToolsFor(phase)
	if len(tools) == 0 {
		return ""
	}
	return tools[0].Key
}

// Keys returns every registered tool key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(specs))
	for _, spec := range specs {
		keys = append(keys, spec.Key)
	}
	sort.Strings(keys)
	return keys
}

// CatalogEntry is one navigation item; hidden tools are included so the
// mobile views can address them.
type CatalogEntry struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Kind  Kind   `json:"kind"`
}

func Catalog() map[workspace.Phase][]CatalogEntry {
	out := make(map[workspace.Phase][]CatalogEntry, 4)
	for _, phase := range workspace.Phases() {
		entries := make([]CatalogEntry, 0)
		for _, spec := range specs {
			if spec.Phase != phase {
				continue
			}
			entries = append(entries, CatalogEntry{Key: spec.Key, Title: spec.Title, Kind: spec.Kind})
		}
		out[phase] = entries
	}
	return out
}
