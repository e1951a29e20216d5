// Package includes parses the compiler's "/showIncludes" diagnostic
// lines to recover the set of headers a translation unit pulled in
// (spec.md §4.K). The header-discovery machinery in
// internal/client/own-includes-parser.go and includes-collector.go is
// generalized here from "parse our own preprocessing" to "parse the
// real compiler's localized notes".
package includes

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// noteLine matches "<word>: <phrase>: <path>", e.g.
// "Note: including file: C:\foo\bar.h". The phrase is locale-dependent
// (letters and spaces only); the path is everything from the first
// non-whitespace after the final ": " to the end of line. This is the
// open question from spec.md §9 resolved as: accept locale sensitivity
// and ship a regex matching the observed phrasing, rather than forcing
// the compiler's message language at spawn time — simpler, and the
// orchestrator already owns the spawn site if a future locale needs a
// second pattern appended here.
var noteLine = regexp.MustCompile(`^[A-Za-z0-9_]+: [A-Za-z ]+: +(\S.*)$`)

// ParseResult is the outcome of parsing a compiler's captured output
// for include notes.
type ParseResult struct {
	Includes    []string // absolute header paths, in discovery order, source file excluded
	FilteredOut []byte   // the input with include-note lines removed, when stripIncludes is set
}

// Parse scans output line by line for include notes. sourceFile is
// excluded from the result (it is not itself an "include"). When
// stripIncludes is true (because /showIncludes was injected by the
// orchestrator rather than requested by the caller), matching lines are
// removed from FilteredOut; otherwise FilteredOut equals output
// unchanged.
func Parse(output []byte, sourceFile string, stripIncludes bool) ParseResult {
	var includes []string
	var kept bytes.Buffer

	sourceNorm := normalizeForCompare(sourceFile)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := noteLine.FindStringSubmatch(line); m != nil {
			path := strings.TrimRight(m[1], "\r")
			if normalizeForCompare(path) != sourceNorm {
				includes = append(includes, path)
			}
			if stripIncludes {
				continue // drop this line from the returned stdout
			}
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}

	result := ParseResult{Includes: includes}
	if stripIncludes {
		result.FilteredOut = kept.Bytes()
	} else {
		result.FilteredOut = output
	}
	return result
}

func normalizeForCompare(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
}
