package shader

import (
	"fmt"
	"strings"
)

// Diagnostic is a non-fatal report from translating, compiling or linking a
// fragment program. Rendering continues with whatever program state is linked.
type Diagnostic struct {
	Stage string // "translate", "compile" or "link"
	Log   string
	// Fatal is true when the new body was rejected; false for warnings on a
	// body that was loaded anyway.
	Fatal bool
}

func (d *Diagnostic) String() string {
	kind := "warning"
	if d.Fatal {
		kind = "error"
	}
	return fmt.Sprintf("%s %s: %s", d.Stage, kind, d.Log)
}

// meaningfulLog reports whether a driver info log carries any message.
// Some drivers return "No errors." for a clean compile.
func meaningfulLog(log string) bool {
	log = strings.TrimSpace(strings.TrimRight(log, "\x00"))
	return log != "" && strings.ToLower(log) != "no errors."
}
