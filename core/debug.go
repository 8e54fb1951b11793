package core

// DebugWriter receives human-readable diagnostic lines.
type DebugWriter func(string)

// debugOut is installed by platform code: stdout on hosted builds, USB CDC
// on targets. Until a writer is installed diagnostics are dropped, which
// keeps the boot path free of ordering constraints.
var debugOut DebugWriter

// SetDebugWriter installs the platform diagnostic writer.
func SetDebugWriter(w DebugWriter) {
	debugOut = w
}

func debugPrint(msg string) {
	if debugOut != nil {
		debugOut(msg)
	}
}
