package shader

import (
	"fmt"
	"strings"
)

// CompileError reports that a single shader stage was rejected by the
// WGSL front-end (parse, lowering, or IR validation).
type CompileError struct {
	// Stage is the stage that failed.
	Stage Stage

	// Label identifies the program the stage belongs to.
	Label string

	// Diagnostics holds every message the compiler produced, in order.
	Diagnostics []string
}

// Error implements the error interface.
// The diagnostics are reported verbatim, one per line.
func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shader: %s stage of %q failed to compile", e.Stage, e.Label)
	for _, d := range e.Diagnostics {
		b.WriteByte('\n')
		b.WriteString(d)
	}
	return b.String()
}

// LinkError reports that two individually valid stages cannot be combined
// into a program, or that vertex data cannot be bound to the program.
type LinkError struct {
	// Label identifies the program.
	Label string

	// Log holds the linker messages (interface mismatches, unknown attributes).
	Log []string

	// VertexLog and FragmentLog hold per-stage messages, such as a missing
	// entry point.
	VertexLog   string
	FragmentLog string
}

// Error implements the error interface.
// The message is the linker log followed by the vertex and fragment stage
// logs, joined by newlines. Empty parts are skipped.
func (e *LinkError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.Log) > 0 {
		parts = append(parts, strings.Join(e.Log, "\n"))
	}
	if e.VertexLog != "" {
		parts = append(parts, e.VertexLog)
	}
	if e.FragmentLog != "" {
		parts = append(parts, e.FragmentLog)
	}
	return fmt.Sprintf("shader: link %q: %s", e.Label, strings.Join(parts, "\n"))
}

// empty reports whether the error carries no messages at all.
func (e *LinkError) empty() bool {
	return len(e.Log) == 0 && e.VertexLog == "" && e.FragmentLog == ""
}
