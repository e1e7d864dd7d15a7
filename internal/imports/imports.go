// Package imports exposes the newest version of sibling documents from
// other phases as read-only context for the active document.
package imports

import (
	"log"

	"frameline/api/internal/doctype"
	"frameline/api/internal/versionstack"
	"frameline/api/internal/workspace"
)

// Context holds the head version of each imported document. A nil field
// means no data is available; it is never an error.
type Context struct {
	Schedule  map[string]any `json:"importedSchedule"`
	AVScript  map[string]any `json:"importedAvScript"`
	Budget    map[string]any `json:"importedBudget"`
	DITLog    map[string]any `json:"importedDitLog"`
	Brief     map[string]any `json:"importedBrief"`
	Vision    map[string]any `json:"importedVision"`
	Lookbook  map[string]any `json:"importedLookbook"`
	Locations map[string]any `json:"importedLocations"`
}

type source struct {
	tool   string
	phases []workspace.Phase
	assign func(*Context, map[string]any)
}

// sources is acyclic by construction: no imported document reads imports.
var sources = []source{
	{doctype.Schedule, []workspace.Phase{workspace.PhasePreProduction}, func(c *Context, v map[string]any) { c.Schedule = v }},
	{doctype.AVScript, []workspace.Phase{workspace.PhaseDevelopment}, func(c *Context, v map[string]any) { c.AVScript = v }},
	{doctype.Budget, []workspace.Phase{workspace.PhasePreProduction}, func(c *Context, v map[string]any) { c.Budget = v }},
	{doctype.DITLog, []workspace.Phase{workspace.PhaseOnSet}, func(c *Context, v map[string]any) { c.DITLog = v }},
	{doctype.Brief, []workspace.Phase{workspace.PhaseDevelopment, workspace.PhasePreProduction}, func(c *Context, v map[string]any) { c.Brief = v }},
	{doctype.ProjectVision, []workspace.Phase{workspace.PhaseDevelopment, workspace.PhasePreProduction}, func(c *Context, v map[string]any) { c.Vision = v }},
	{doctype.Lookbook, []workspace.Phase{workspace.PhaseDevelopment}, func(c *Context, v map[string]any) { c.Lookbook = v }},
	{doctype.LocationsSets, []workspace.Phase{workspace.PhasePreProduction}, func(c *Context, v map[string]any) { c.Locations = v }},
}

// Resolve reads every source pair. Candidate phases are tried in order and
// the first one holding a readable head wins. A head that fails its schema
// is still imported; the mismatch is only logged.
func Resolve(phases map[workspace.Phase]workspace.PhaseState) Context {
	var ctx Context
	for _, src := range sources {
		for _, phase := range src.phases {
			ps, ok := phases[phase]
			if !ok {
				continue
			}
			draft, ok := ps.Drafts[src.tool]
			if !ok {
				continue
			}
			if head, ok := versionstack.Head(draft); ok {
				if err := doctype.Validate(src.tool, head); err != nil {
					log.Printf("imports: %s head in %s does not match schema: %v", src.tool, phase, err)
				}
				src.assign(&ctx, head)
				break
			}
		}
	}
	return ctx
}
