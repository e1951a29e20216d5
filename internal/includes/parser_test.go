package includes

import (
	"reflect"
	"testing"
)

func TestParseCollectsIncludesAndExcludesSource(t *testing.T) {
	output := "Note: including file: C:\\foo\\bar.h\r\n" +
		"Note: including file:  C:\\foo\\baz.h\r\n" +
		"main.cpp\r\n"

	result := Parse([]byte(output), `C:\foo\main.cpp`, false)

	want := []string{`C:\foo\bar.h`, `C:\foo\baz.h`}
	if !reflect.DeepEqual(result.Includes, want) {
		t.Errorf("Includes = %#v, want %#v", result.Includes, want)
	}
	if string(result.FilteredOut) != output {
		t.Errorf("FilteredOut changed when stripIncludes was false")
	}
}

func TestParseStripsInjectedNotes(t *testing.T) {
	output := "Note: including file: C:\\foo\\bar.h\r\nwarning C4101\r\n"

	result := Parse([]byte(output), `C:\foo\main.cpp`, true)

	if len(result.Includes) != 1 || result.Includes[0] != `C:\foo\bar.h` {
		t.Errorf("Includes = %#v", result.Includes)
	}
	if containsSubstring(string(result.FilteredOut), "including file") {
		t.Errorf("FilteredOut still contains an include note: %q", result.FilteredOut)
	}
	if !containsSubstring(string(result.FilteredOut), "warning C4101") {
		t.Errorf("FilteredOut dropped an unrelated line: %q", result.FilteredOut)
	}
}

func TestParseExcludesSourceFileItself(t *testing.T) {
	output := "Note: including file: C:\\foo\\main.cpp\r\n"
	result := Parse([]byte(output), `C:\foo\main.cpp`, false)
	if len(result.Includes) != 0 {
		t.Errorf("Includes = %#v, want the source file excluded", result.Includes)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
