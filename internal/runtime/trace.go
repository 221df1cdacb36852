package runtime

import (
	"errors"
	"strings"

	"github.com/flowtap/flowtap/internal/runtime/stacktrace"
)

// snapshot is the assembly-time record of one stage: the label shown in
// traces and the pruned construction call stack. Captured once, never
// mutated afterwards.
type snapshot struct {
	label  string
	frames []stacktrace.Frame
}

func captureSnapshot(label string) *snapshot {
	return &snapshot{
		label:  label,
		frames: stacktrace.Prune(stacktrace.Capture(2, 48)),
	}
}

// site returns the user call site that built the stage, "unknown" when
// pruning removed every frame.
func (s *snapshot) site() string {
	if len(s.frames) == 0 {
		return "unknown"
	}
	return s.frames[0].Site()
}

func operatorLabel(name string) string {
	return "Flow." + name
}

// TracedError attaches a rendered assembly trace to a failure as a
// secondary diagnostic. Message and unwrap chain are the cause's own, so
// errors.Is, errors.As, and equality checks against the cause keep working.
type TracedError struct {
	Cause error
	Trace string
}

func (e *TracedError) Error() string {
	return e.Cause.Error()
}

func (e *TracedError) Unwrap() error {
	return e.Cause
}

// AssemblyTrace returns the assembly trace attached anywhere in err's
// unwrap chain, and whether one was found.
func AssemblyTrace(err error) (string, bool) {
	var traced *TracedError
	if errors.As(err, &traced) {
		return traced.Trace, true
	}
	return "", false
}

// attachAssemblyTrace decorates err with the trace rendered from the
// failing stage. Nothing is attached when err is nil, already carries a
// trace, or no stage in the upstream chain captured a snapshot; rendering
// failures only cost the diagnostic, never the error itself.
func attachAssemblyTrace(source Stage, err error) error {
	if err == nil || source == nil {
		return err
	}
	var existing *TracedError
	if errors.As(err, &existing) {
		return err
	}
	trace, ok := renderAssemblyTrace(source)
	if !ok {
		return err
	}
	return &TracedError{Cause: err, Trace: trace}
}

// renderAssemblyTrace renders the upstream chain of the failing stage as
// one line per snapshot-bearing node, nearest parent first, indented one
// tab per upstream hop. It only reads the graph; a panic while walking a
// misbehaving Stage implementation aborts rendering instead of escaping.
func renderAssemblyTrace(failing Stage) (out string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			out, ok = "", false
		}
	}()
	var b strings.Builder
	b.WriteString("Assembly trace from operator [")
	b.WriteString(failing.Name())
	b.WriteString("]:")
	seen := make(map[Stage]bool)
	if writeTraceLines(&b, failing, 0, seen) == 0 {
		return "", false
	}
	return b.String(), true
}

func writeTraceLines(b *strings.Builder, s Stage, depth int, seen map[Stage]bool) int {
	if s == nil || seen[s] {
		return 0
	}
	seen[s] = true
	lines := 0
	if f, isFlow := s.(*Flow); isFlow && f.snap != nil {
		b.WriteString("\n")
		for i := 0; i < depth; i++ {
			b.WriteString("\t")
		}
		b.WriteString("|_\t")
		b.WriteString(f.snap.label)
		b.WriteString("(")
		b.WriteString(f.snap.site())
		b.WriteString(")")
		lines++
	}
	for p := range s.Parents() {
		lines += writeTraceLines(b, p, depth+1, seen)
	}
	return lines
}
