// Package stacktrace captures and prunes construction-site call stacks for
// assembly snapshots. Pruning is string-based over function names so it works
// on whatever goroutine assembles a pipeline, without coordination.
package stacktrace

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const modulePrefix = "github.com/flowtap/flowtap"

// Frame is one retained call site.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Site returns the short "file.go:line" form used in rendered traces.
func (f Frame) Site() string {
	if f.File == "" {
		return "unknown"
	}
	return filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
}

// ShortFunc returns the function name stripped of its package path.
func (f Frame) ShortFunc() string {
	name := f.Function
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Capture records up to max frames, starting skip levels above the caller.
func Capture(skip, max int) []Frame {
	pcs := make([]uintptr, max)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		if fr.Function != "" {
			out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			break
		}
	}
	return out
}

// Prune drops frames belonging to this module's own packages and to the Go
// runtime/testing scaffolding. Test files are kept so in-tree callers stay
// visible as the construction site.
func Prune(frames []Frame) []Frame {
	out := make([]Frame, 0, len(frames))
	for _, fr := range frames {
		if internalFrame(fr) {
			continue
		}
		out = append(out, fr)
	}
	return out
}

func internalFrame(f Frame) bool {
	fn := f.Function
	if strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "testing.") {
		return true
	}
	if !strings.HasPrefix(fn, modulePrefix) {
		return false
	}
	return !strings.HasSuffix(f.File, "_test.go")
}
