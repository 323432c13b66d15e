package stagectx

import "strings"

// Render fills {name} placeholders from vars. {{ and }} produce literal
// braces, so templates can show JSON examples. Unknown placeholders are kept.
func Render(tmpl string, vars map[string]string) string {
	var sb strings.Builder
	sb.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				sb.WriteString(tmpl[i:])
				return sb.String()
			}
			name := tmpl[i+1 : i+1+end]
			if v, ok := vars[name]; ok && isIdent(name) {
				sb.WriteString(v)
			} else {
				sb.WriteString(tmpl[i : i+2+end])
			}
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// StripCommentLines drops lines whose first non-space character is '#'.
func StripCommentLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
