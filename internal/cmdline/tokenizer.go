// Package cmdline implements the command-line analysis pipeline: MSVC
// cl.exe-style tokenization, response-file expansion, environment
// prepend/append, and flag-shape classification (spec.md §4.B–§4.C).
package cmdline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxResponseFileDepth bounds response-file recursion. The host
// compiler does not detect @file cycles either; clcache simply refuses
// to recurse past a generous depth instead of hanging.
const maxResponseFileDepth = 64

// Tokenize splits a single command-line string into arguments using the
// documented Microsoft C runtime rules: backslashes are literal except
// immediately before a quote, where an even run folds to half as many
// backslashes and toggles quoting, and an odd run folds to half
// (rounded down) plus one literal quote without toggling. Whitespace
// outside quotes separates tokens.
func Tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	haveToken := false
	backslashes := 0

	flushBackslashes := func(followedByQuote bool) {
		if followedByQuote {
			cur.WriteString(strings.Repeat(`\`, backslashes/2))
			if backslashes%2 == 1 {
				cur.WriteByte('"')
			} else {
				inQuotes = !inQuotes
			}
		} else {
			cur.WriteString(strings.Repeat(`\`, backslashes))
		}
		backslashes = 0
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\':
			backslashes++
		case c == '"':
			flushBackslashes(true)
			haveToken = true
		case !inQuotes && (c == ' ' || c == '\t'):
			flushBackslashes(false)
			if haveToken || cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
				haveToken = false
			}
		default:
			flushBackslashes(false)
			cur.WriteRune(c)
			haveToken = true
		}
	}
	flushBackslashes(false)
	if haveToken || cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// ExpandResponseFiles replaces every "@file" token with the tokens of
// file's decoded contents, recursively, to a fixed point. Decoding
// autodetects a UTF-32/UTF-16 byte-order-mark, defaulting to UTF-8 when
// none is present (spec.md §4.B).
func ExpandResponseFiles(argv []string) ([]string, error) {
	return expandResponseFiles(argv, 0)
}

func expandResponseFiles(argv []string, depth int) ([]string, error) {
	if depth > maxResponseFileDepth {
		return argv, nil
	}

	out := make([]string, 0, len(argv))
	changed := false
	for _, arg := range argv {
		if len(arg) == 0 || arg[0] != '@' {
			out = append(out, arg)
			continue
		}
		changed = true
		contents, err := readResponseFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("clcache: reading response file %s: %w", arg[1:], err)
		}
		out = append(out, Tokenize(contents)...)
	}
	if !changed {
		return out, nil
	}
	return expandResponseFiles(out, depth+1)
}

// readResponseFile reads and decodes a response file, autodetecting a
// BOM for UTF-32 BE/LE or UTF-16 BE/LE and defaulting to UTF-8.
func readResponseFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeWithBOM(raw)
}

// decodeWithBOM autodetects a leading byte-order-mark among
// {UTF-32 BE/LE, UTF-16 BE/LE}, defaulting to UTF-8 (spec.md §4.B).
// UTF-32 is checked first since its little-endian BOM is a byte
// superset of UTF-16LE's.
func decodeWithBOM(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return decodeUTF32(raw[4:], binary.BigEndian)
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return decodeUTF32(raw[4:], binary.LittleEndian)
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return decodeUTF16(raw, unicode.BigEndian)
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return decodeUTF16(raw, unicode.LittleEndian)
	default:
		return string(raw), nil
	}
}

func decodeUTF16(raw []byte, endian unicode.Endianness) (string, error) {
	decoded, _, err := transform.Bytes(unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func decodeUTF32(body []byte, order binary.ByteOrder) (string, error) {
	if len(body)%4 != 0 {
		return "", fmt.Errorf("clcache: truncated UTF-32 response file")
	}
	var sb strings.Builder
	buf := make([]byte, utf8.UTFMax)
	for i := 0; i+4 <= len(body); i += 4 {
		r := rune(order.Uint32(body[i : i+4]))
		n := utf8.EncodeRune(buf, r)
		sb.Write(buf[:n])
	}
	return sb.String(), nil
}

// PrependEnvCL and AppendEnvCL implement spec.md §4.B's environment
// prepend/append: CL is tokenized and placed before argv, _CL_ after.
// The caller is responsible for stripping CL/_CL_ from the environment
// forwarded to a real compiler spawn.
func PrependEnvCL(argv []string, clEnv string) []string {
	if clEnv == "" {
		return argv
	}
	return append(Tokenize(clEnv), argv...)
}

func AppendEnvCL(argv []string, underscoreClEnv string) []string {
	if underscoreClEnv == "" {
		return argv
	}
	return append(argv, Tokenize(underscoreClEnv)...)
}

// ForwardedEnviron returns os.Environ() with CL and _CL_ removed, ready
// to be passed to a spawned real-compiler process.
func ForwardedEnviron() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "CL=") || strings.HasPrefix(kv, "_CL_=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
