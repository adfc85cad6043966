// Package path implements the escape-aware hierarchical path algebra that
// underpins routing: canonical paths, component iteration, and
// longest-prefix-friendly ordering.
//
// A Path is either "/" or a non-empty string beginning with "/", with no
// empty components and no trailing "/". The separator is '/'; the escape
// character is '\'. "\/" denotes a literal '/' within a component and "\\"
// denotes a literal '\'.
package path

import "strings"

const (
	sepByte byte = '/'
	escByte byte = '\\'
)

// Path is an immutable, canonical, '/'-separated hierarchical name. Since Go
// strings are immutable and share their backing storage on copy/slice, Path
// gets O(1) clone and a stable hash (its own bytes) for free, with no
// reference counting of its own.
type Path string

// Root returns the canonical root path "/".
func Root() Path { return Path("/") }

// New canonicalizes s and returns the resulting Path. Canonicalization runs
// exactly once, here.
func New(s string) Path {
	if isCanonical(s) {
		return Path(s)
	}
	return Path(canonize(s))
}

func (p Path) String() string { return string(p) }

// Append returns path + "/" + part, canonicalized. An empty part is a no-op.
func (p Path) Append(part string) Path {
	if part == "" {
		return p
	}
	return New(string(p) + "/" + part)
}

// Parts returns the escape-aware path components.
func (p Path) Parts() []string { return Parts(string(p)) }

// Dirname returns the path without its last component, or ("", false) if
// the path is "/" or empty.
func (p Path) Dirname() (Path, bool) {
	d, ok := Dirname(string(p))
	if !ok {
		return "", false
	}
	return Path(d), true
}

// Basename returns the last component of the path, or ("", false) if the
// path is "/" or empty.
func (p Path) Basename() (string, bool) { return Basename(string(p)) }

// Dirnames returns every prefix of the path from "/" up to and including
// the full path.
func (p Path) Dirnames() []Path {
	raw := Dirnames(string(p))
	out := make([]Path, len(raw))
	for i, s := range raw {
		out[i] = Path(s)
	}
	return out
}

// IsAbsolute reports whether the path starts with "/".
func (p Path) IsAbsolute() bool { return IsAbsolute(string(p)) }

// Levels returns the number of components in the path.
func (p Path) Levels() int { return Levels(string(p)) }

// --- free functions, usable on any string including un-canonicalized input ---

// IsAbsolute reports whether s starts with '/'.
func IsAbsolute(s string) bool {
	return strings.HasPrefix(s, "/")
}

// Escape escapes the path separator and the escape character within a
// single path component.
//
//	Escape("foo/bar") == `foo\/bar`
//	Escape(`\hello world`) == `\\hello world`
func Escape(part string) string {
	var needsEscape bool
	for i := 0; i < len(part); i++ {
		if part[i] == sepByte || part[i] == escByte {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return part
	}
	out := make([]byte, 0, len(part)+4)
	for i := 0; i < len(part); i++ {
		c := part[i]
		if c == sepByte || c == escByte {
			out = append(out, escByte)
		}
		out = append(out, c)
	}
	return string(out)
}

// Unescape reverses Escape.
//
//	Unescape(`foo\/bar`) == "foo/bar"
//	Unescape(`\\hello world`) == `\hello world`
func Unescape(part string) string {
	hasEscaped := false
	for i := 0; i < len(part); i++ {
		if isEscaped(part, i) {
			hasEscaped = true
			break
		}
	}
	if !hasEscaped {
		return part
	}
	out := make([]byte, 0, len(part))
	for i := 0; i < len(part); i++ {
		if isEscaped(part, i) {
			out = out[:len(out)-1]
		}
		out = append(out, part[i])
	}
	return string(out)
}

// Parts returns an escape-aware iteration of s's path components. The
// leading "/" (or the pair forming the root "/") is never itself a
// component.
//
//	Parts("/foo/bar/baz") == []string{"foo", "bar", "baz"}
//	Parts(`/foo\/bar/baz`) == []string{`foo\/bar`, "baz"}
func Parts(s string) []string {
	var skip int
	switch {
	case s == "/":
		skip = 2
	case strings.HasPrefix(s, "/"):
		skip = 1
	default:
		skip = 0
	}
	all := splitEscaped(s)
	if skip >= len(all) {
		return nil
	}
	return all[skip:]
}

// Levels returns the number of components in s.
func Levels(s string) int {
	return len(Parts(s))
}

// Dirnames returns every prefix of s from "/" up to and including s itself.
//
//	Dirnames("/a/b/c") == []string{"/", "/a", "/a/b", "/a/b/c"}
//	Dirnames("/") == []string{"/"}
func Dirnames(s string) []string {
	if s == "/" {
		return []string{"/"}
	}
	parts := Parts(s)
	out := make([]string, 0, len(parts)+1)
	cur := "/"
	out = append(out, cur)
	for _, part := range parts {
		cur = string(New(cur).Append(part))
		out = append(out, cur)
	}
	return out
}

// Dirname returns s without its last component, or ("", false) if s is
// empty or "/". The dirname of a single-component path such as "/foo" is
// "/".
func Dirname(s string) (string, bool) {
	i := rfindSep(s)
	if i < 0 || len(s) <= 1 {
		return "", false
	}
	if i == 0 {
		return "/", true
	}
	return s[:i], true
}

// Basename returns the last component of s, or ("", false) if s is empty
// or "/".
func Basename(s string) (string, bool) {
	i := rfindSep(s)
	if i < 0 {
		if len(s) > 0 {
			return s, true
		}
		return "", false
	}
	if len(s) <= 1 {
		return "", false
	}
	return s[i+1:], true
}

func isCanonical(s string) bool {
	for _, p := range Parts(s) {
		if p == "" {
			return false
		}
	}
	return true
}

func canonize(s string) string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	if s[0] == sepByte {
		b.WriteByte(sepByte)
	}
	first := true
	for _, p := range Parts(s) {
		if p == "" {
			continue
		}
		if first {
			first = false
		} else {
			b.WriteByte(sepByte)
		}
		b.WriteString(p)
	}
	return b.String()
}

// isEscaped reports whether the byte at s[i] is preceded by an odd run of
// escape characters, i.e. whether it is itself escaped.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == escByte; j-- {
		n++
	}
	return n%2 == 1
}

// findSepInt walks successively shorter prefixes of s, applying find, until
// it lands on an unescaped separator or exhausts s. Truncating from the
// right preserves absolute byte offsets into the original s.
func findSepInt(s string, find func(string) int) int {
	for len(s) > 0 {
		i := find(s)
		if i < 0 {
			return -1
		}
		if !isEscaped(s, i) {
			return i
		}
		s = s[:i]
	}
	return -1
}

func rfindSep(s string) int {
	return findSepInt(s, func(s string) int { return strings.LastIndexByte(s, sepByte) })
}

// splitEscaped splits s on every unescaped separator, keeping empty
// components (callers filter those they don't want).
func splitEscaped(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sepByte && !isEscaped(s, i) {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
