package cmdline

import (
	"os"
	"path/filepath"
	"strings"
)

// shape is one of the four flag forms from spec.md §4.C.
type shape int

const (
	shapeT1 shape = iota // /NAMEp, value required and non-empty
	shapeT2              // /NAME[p], value optional
	shapeT3              // /NAME[ ]p, value from suffix or following token
	shapeT4              // /NAME p, value always the following token
)

type flagDef struct {
	name  string
	shape shape
}

// flagTable is the contract: flag names belong to the host compiler,
// the classifier only enforces shapes. The table is not ordered;
// matchFlag picks the longest matching name, so e.g. "/EP" is not
// shadowed by "/E". It covers a subset of cl.exe's flags; arguments
// that match no entry are passed through unclassified.
var flagTable = []flagDef{
	{"Fo", shapeT3}, {"Fe", shapeT3}, {"Fd", shapeT3}, {"Fi", shapeT3},
	{"Tc", shapeT3}, {"Tp", shapeT3},
	{"I", shapeT4}, {"D", shapeT3}, {"U", shapeT3},
	{"FI", shapeT4},
	{"Yc", shapeT2}, {"Yu", shapeT2}, {"Yl", shapeT2}, {"Fp", shapeT3},
	{"Zi", shapeT2}, {"Z7", shapeT2}, {"ZI", shapeT2},
	{"E", shapeT2}, {"EP", shapeT2}, {"P", shapeT2},
	{"Zm", shapeT1}, {"MP", shapeT2}, {"MT", shapeT2}, {"MD", shapeT2},
	{"clr", shapeT2}, {"FR", shapeT3}, {"Fr", shapeT3}, {"FA", shapeT2}, {"doc", shapeT3},
	{"c", shapeT2}, {"link", shapeT2},
}

// matchFlag finds the longest-prefix flag name matching arg (without
// the leading '/') and returns its shape plus the raw remainder after
// the name.
func matchFlag(arg string) (name string, sh shape, rest string, ok bool) {
	body := arg[1:] // strip '/'
	best := -1
	for i, def := range flagTable {
		if strings.HasPrefix(body, def.name) {
			if best == -1 || len(def.name) > len(flagTable[best].name) {
				best = i
			}
		}
	}
	if best == -1 {
		return "", 0, "", false
	}
	def := flagTable[best]
	return def.name, def.shape, body[len(def.name):], true
}

// Analyze classifies argv (already response-file-expanded and
// env-prepended/appended) per spec.md §4.C's decision tree. On success
// it returns the input source files and, for the single-input case,
// the derived object-file path. On failure it returns one of the
// AnalysisError sentinels.
func Analyze(argv []string, cwd string) (inputFiles []string, objectFile string, err error) {
	var hasE, hasZi, hasYcYu, hasLink, hasC, hasTcTp bool
	var foValue string
	values := map[string]string{}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if len(arg) == 0 {
			continue
		}
		if arg[0] == '@' {
			continue // response files are expanded before Analyze runs
		}
		if arg[0] != '/' && arg[0] != '-' {
			inputFiles = append(inputFiles, arg)
			continue
		}
		// normalize leading '-' to '/' for matching, MSVC accepts both
		normalized := "/" + arg[1:]
		name, sh, rest, ok := matchFlag(normalized)
		if !ok {
			continue // unrecognized flags are passed through untouched
		}

		var value string
		switch sh {
		case shapeT1:
			if rest == "" {
				err = ErrInvalidArgument
				return
			}
			value = rest
		case shapeT2:
			value = rest
		case shapeT3:
			if rest != "" {
				value = rest
			} else if i+1 < len(argv) {
				i++
				value = argv[i]
			}
		case shapeT4:
			if i+1 < len(argv) {
				i++
				value = argv[i]
			}
		}
		values[name] = value

		switch name {
		case "E", "EP", "P":
			hasE = true
		case "Zi", "ZI":
			hasZi = true
		case "Yc", "Yu":
			hasYcYu = true
		case "link":
			hasLink = true
		case "c":
			hasC = true
		case "Tc", "Tp":
			hasTcTp = true
			if value != "" {
				inputFiles = append(inputFiles, value) // /Tc,/Tp name the source explicitly; they don't appear as a bare argv token
			}
		case "clr", "FR", "Fr", "FA", "doc":
			// these flags produce side-band artifacts clcache doesn't model
			// (managed metadata, browse info, assembly listings), folded
			// into the closed AnalysisError set's InvalidArgument bucket
			// since spec.md reserves no dedicated variant for them.
			err = ErrInvalidArgument
			return
		case "Fo":
			foValue = value
		}
	}

	if len(inputFiles) == 0 {
		err = ErrNoSourceFile
		return
	}
	if hasE {
		err = ErrCalledForPreprocessing
		return
	}
	if hasZi {
		err = ErrExternalDebugInfo
		return
	}
	if hasYcYu {
		err = ErrCalledWithPch
		return
	}
	if hasLink || !hasC {
		err = ErrCalledForLink
		return
	}
	if len(inputFiles) > 1 && hasTcTp {
		err = ErrMultipleSourceFilesComplex
		return
	}
	if len(inputFiles) > 1 {
		return inputFiles, "", nil // orchestrator re-invokes once per source
	}

	objectFile = deriveObjectFile(inputFiles[0], foValue, cwd)
	return inputFiles, objectFile, nil
}

// deriveObjectFile implements spec.md §4.C rule 8: /Fo argument if
// present (normalized; a directory gets the source basename + .obj
// appended), otherwise the source basename with .obj in cwd.
func deriveObjectFile(source string, foValue string, cwd string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ".obj"
	if foValue == "" {
		return filepath.Join(cwd, base)
	}
	if isDirLike(foValue) {
		return filepath.Join(foValue, base)
	}
	return filepath.Clean(foValue)
}

// isDirLike reports whether foValue names a directory: either it ends
// in a path separator or is ".", or it already exists on disk as one.
// The on-disk check uses os.Stat on foValue as given, so a relative
// path is resolved against the process's working directory, not
// Analyze's cwd argument.
func isDirLike(foValue string) bool {
	if strings.HasSuffix(foValue, "/") || strings.HasSuffix(foValue, `\`) || foValue == "." {
		return true
	}
	return dirExists(foValue)
}

func dirExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

// normalizeStripNames are the flags SPEC_FULL.md's no-direct-mode key
// derivation excludes from the normalized command line: output
// location, preprocessing toggles, and include/define lists, all
// already reflected in the preprocessed content or the manifest's
// header-hash set. A change restricted to these flags must not change
// the cache key. NormalizeForHash finds flags through matchFlag, so only
// names that are also in flagTable are stripped; AI, C, u, X, FU and Fx
// are not in flagTable and stay in the normalized command line.
var normalizeStripNames = map[string]bool{
	"AI": true, "C": true, "E": true, "P": true, "FI": true,
	"u": true, "X": true, "FU": true, "D": true, "EP": true,
	"Fx": true, "U": true, "I": true, "Fo": true, "MP": true,
}

// NormalizeForHash strips normalizeStripNames flags (and, where the
// flag's shape takes a following token, that token too) from argv, so
// that two invocations differing only in those flags hash identically.
func NormalizeForHash(argv []string) []string {
	var out []string
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if len(arg) == 0 || (arg[0] != '/' && arg[0] != '-') {
			out = append(out, arg)
			continue
		}
		normalized := "/" + arg[1:]
		name, sh, rest, ok := matchFlag(normalized)
		if !ok || !normalizeStripNames[name] {
			out = append(out, arg)
			continue
		}
		if rest == "" && (sh == shapeT3 || sh == shapeT4) && i+1 < len(argv) {
			i++ // also drop the flag's separate value token
		}
	}
	return out
}
