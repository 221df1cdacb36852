package runtime

import (
	"github.com/flowtap/flowtap/internal/runtime/jsoncodec"
)

// StageDescription is the exportable shape of one pipeline stage, reduced
// from the live introspection graph.
type StageDescription struct {
	Operator string              `json:"operator"`
	Tags     map[string]string   `json:"tags,omitempty"`
	Site     string              `json:"site,omitempty"`
	Parents  []*StageDescription `json:"parents,omitempty"`
}

// Describe reduces the graph rooted at s into plain descriptions, upstream
// direction, nearest parents first. Stages already visited on another path
// are not repeated, which also makes misbehaving cyclic graphs safe to
// describe.
func Describe(s Stage) *StageDescription {
	if s == nil {
		return nil
	}
	return describeStage(s, make(map[Stage]bool))
}

func describeStage(s Stage, seen map[Stage]bool) *StageDescription {
	if s == nil || seen[s] {
		return nil
	}
	seen[s] = true
	d := &StageDescription{Operator: s.Name()}
	for k, v := range s.Tags() {
		if d.Tags == nil {
			d.Tags = make(map[string]string)
		}
		d.Tags[k] = v
	}
	if f, ok := s.(*Flow); ok && f.snap != nil {
		d.Site = f.snap.site()
	}
	for p := range s.Parents() {
		if pd := describeStage(p, seen); pd != nil {
			d.Parents = append(d.Parents, pd)
		}
	}
	return d
}

// GraphJSON renders the graph rooted at s as indented JSON, suitable for
// dashboards and debugging endpoints.
func GraphJSON(s Stage) ([]byte, error) {
	return jsoncodec.MarshalIndent(Describe(s), "", "  ")
}
