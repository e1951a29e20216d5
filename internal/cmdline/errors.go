package cmdline

import "errors"

// AnalysisError is the closed set of reasons analyze() refuses to
// derive a cache key for an invocation (spec.md §4.C, §7). Each variant
// maps to exactly one statistics counter and causes the orchestrator to
// forward the invocation to the real compiler unchanged.
type AnalysisError struct {
	kind string
}

func (e *AnalysisError) Error() string { return "clcache: " + e.kind }

// Is makes AnalysisError comparable with errors.Is against the sentinels below.
func (e *AnalysisError) Is(target error) bool {
	other, ok := target.(*AnalysisError)
	return ok && other.kind == e.kind
}

var (
	ErrNoSourceFile              = &AnalysisError{"no source file in command line"}
	ErrMultipleSourceFilesComplex = &AnalysisError{"multiple source files with /Tc or /Tp"}
	ErrCalledForLink              = &AnalysisError{"invocation performs linking"}
	ErrCalledWithPch              = &AnalysisError{"invocation creates or uses a precompiled header"}
	ErrExternalDebugInfo          = &AnalysisError{"invocation requests external (/Zi) debug info"}
	ErrCalledForPreprocessing     = &AnalysisError{"invocation only preprocesses"}
	ErrInvalidArgument            = &AnalysisError{"invalid argument"}
)

// StatKey returns the statistics counter name this error bumps
// (spec.md §3 Statistics, §7 Error Handling).
func (e *AnalysisError) StatKey() string {
	switch e {
	case ErrNoSourceFile:
		return "CallsWithoutSourceFile"
	case ErrMultipleSourceFilesComplex:
		return "CallsForMultipleSourceFiles"
	case ErrCalledForLink:
		return "CallsForLinking"
	case ErrCalledWithPch:
		return "CallsWithPch"
	case ErrExternalDebugInfo:
		return "CallsWithDebugInfo"
	case ErrCalledForPreprocessing:
		return "CallsForPreprocessing"
	case ErrInvalidArgument:
		return "CallsWithInvalidArgument"
	default:
		return "CallsWithUnknownError"
	}
}

// AsAnalysisError reports whether err is one of the sentinels above.
func AsAnalysisError(err error) (*AnalysisError, bool) {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
