package route

import (
	"fmt"
	"path"
	"strings"
)

type segKind int

const (
	segLiteral segKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind  segKind
	value string // literal text, param name, or literal prefix of a wildcard
}

// Pattern is a compiled path template such as /images/:id/:file, /api/* or /search*.
type Pattern struct {
	raw  string
	segs []segment
}

// Match holds what a pattern captured from a path.
type Match struct {
	Params map[string]string
	Rest   string

	path string
}

// Compile parses a path template. A trailing * captures the remainder of the path,
// either as a whole segment (/api/*) or after a literal prefix (/search*).
func Compile(raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", raw)
	}
	parts := strings.Split(raw[1:], "/")
	p := &Pattern{raw: raw, segs: make([]segment, 0, len(parts))}
	seen := make(map[string]bool)

	for i, part := range parts {
		last := i == len(parts)-1
		switch {
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if !validName(name) {
				return nil, fmt.Errorf("pattern %q: bad parameter %q", raw, part)
			}
			if seen[name] {
				return nil, fmt.Errorf("pattern %q: duplicate parameter %q", raw, name)
			}
			seen[name] = true
			p.segs = append(p.segs, segment{kind: segParam, value: name})
		case strings.Contains(part, "*"):
			if !last || strings.Index(part, "*") != len(part)-1 {
				return nil, fmt.Errorf("pattern %q: * is only allowed at the end", raw)
			}
			p.segs = append(p.segs, segment{kind: segWildcard, value: strings.TrimSuffix(part, "*")})
		default:
			p.segs = append(p.segs, segment{kind: segLiteral, value: part})
		}
	}
	return p, nil
}

// MustCompile is Compile for static patterns.
func MustCompile(raw string) *Pattern {
	p, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string { return p.raw }

// Params returns the names of the path parameters in order.
func (p *Pattern) Params() []string {
	var names []string
	for _, s := range p.segs {
		if s.kind == segParam {
			names = append(names, s.value)
		}
	}
	return names
}

// HasWildcard reports whether the pattern captures a remainder.
func (p *Pattern) HasWildcard() bool {
	return len(p.segs) > 0 && p.segs[len(p.segs)-1].kind == segWildcard
}

// Match matches a decoded request path against the pattern.
func (p *Pattern) Match(reqPath string) (Match, bool) {
	if !strings.HasPrefix(reqPath, "/") {
		return Match{}, false
	}
	parts := strings.Split(reqPath[1:], "/")
	m := Match{Params: make(map[string]string), path: reqPath}

	for i, s := range p.segs {
		if s.kind == segWildcard {
			if i >= len(parts) {
				return Match{}, false
			}
			rest := strings.Join(parts[i:], "/")
			if !strings.HasPrefix(rest, s.value) {
				return Match{}, false
			}
			m.Rest = strings.TrimPrefix(rest, s.value)
			return m, true
		}
		if i >= len(parts) {
			return Match{}, false
		}
		switch s.kind {
		case segLiteral:
			if parts[i] != s.value {
				return Match{}, false
			}
		case segParam:
			if !validParamValue(parts[i]) {
				return Match{}, false
			}
			m.Params[s.value] = parts[i]
		}
	}
	if len(parts) != len(p.segs) {
		return Match{}, false
	}
	return m, true
}

// Prefix returns the literal text every matching path starts with.
func (p *Pattern) Prefix() string {
	var sb strings.Builder
	for _, s := range p.segs {
		sb.WriteByte('/')
		switch s.kind {
		case segLiteral:
			sb.WriteString(s.value)
		case segWildcard:
			sb.WriteString(s.value)
			return sb.String()
		default:
			return sb.String()
		}
	}
	return sb.String()
}

// Template is a compiled upstream path template using the same placeholders as Pattern.
type Template struct {
	raw   string
	parts []segment
}

// ParseTemplate parses a rewrite template such as /covers/:id/:file or /*.
func ParseTemplate(raw string) (*Template, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("rewrite %q must start with /", raw)
	}
	t := &Template{raw: raw}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, segment{kind: segLiteral, value: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c == '*':
			flush()
			t.parts = append(t.parts, segment{kind: segWildcard})
		case c == ':' && i+1 < len(raw) && isNameByte(raw[i+1]):
			flush()
			j := i + 1
			for j < len(raw) && isNameByte(raw[j]) {
				j++
			}
			t.parts = append(t.parts, segment{kind: segParam, value: raw[i+1 : j]})
			i = j - 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

func (t *Template) String() string { return t.raw }

// check verifies every placeholder in t is produced by p.
func (t *Template) check(p *Pattern) error {
	params := make(map[string]bool)
	for _, n := range p.Params() {
		params[n] = true
	}
	for _, part := range t.parts {
		switch part.kind {
		case segParam:
			if !params[part.value] {
				return fmt.Errorf("rewrite %q uses :%s which %q does not capture", t.raw, part.value, p.raw)
			}
		case segWildcard:
			if !p.HasWildcard() {
				return fmt.Errorf("rewrite %q uses * but %q has no wildcard", t.raw, p.raw)
			}
		}
	}
	return nil
}

// Prefix returns the literal text before the first placeholder.
func (t *Template) Prefix() string {
	if len(t.parts) > 0 && t.parts[0].kind == segLiteral {
		return t.parts[0].value
	}
	return "/"
}

// Expand fills the template from a match and returns a cleaned path.
func (t *Template) Expand(m Match) string {
	var sb strings.Builder
	for _, part := range t.parts {
		switch part.kind {
		case segLiteral:
			sb.WriteString(part.value)
		case segParam:
			sb.WriteString(m.Params[part.value])
		case segWildcard:
			sb.WriteString(m.Rest)
		}
	}
	return cleanPath(sb.String())
}

// cleanPath resolves dot segments but keeps a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// within reports whether a cleaned path stays under prefix.
func within(p, prefix string) bool {
	if strings.HasPrefix(p, prefix) {
		return true
	}
	return strings.HasSuffix(prefix, "/") && p == strings.TrimSuffix(prefix, "/")
}

// validParamValue rejects empty and dot segments, which cleaning would collapse.
func validParamValue(v string) bool {
	return v != "" && v != "." && v != ".."
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return false
		}
	}
	return true
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
