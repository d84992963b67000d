package pathmap

import (
	"fmt"
	"strings"
)

// UnresolvedPlaceholderError is returned by Render when a placeholder path
// does not resolve in the context. It aborts only the relay attempt that
// rendered the template.
type UnresolvedPlaceholderError struct {
	Path string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("template placeholder %q not found in context", e.Path)
}

// Render substitutes "{path}" placeholders in template with the stringified
// values found at those paths in context. "{{" and "}}" escape literal
// braces. A placeholder whose path is absent yields an
// *UnresolvedPlaceholderError.
func Render(template string, context interface{}) (string, error) {
	var out strings.Builder
	for i := 0; i < len(template); i++ {
		switch c := template[i]; c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder in template %q", template)
			}
			path := template[i+1 : i+end]
			absent := new(struct{})
			v := Get(context, path, absent)
			if v == interface{}(absent) {
				return "", &UnresolvedPlaceholderError{Path: path}
			}
			out.WriteString(Stringify(v))
			i += end
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				i++
			}
			out.WriteByte('}')
		default:
			out.WriteByte(c)
		}
	}
	return out.String(), nil
}

// Stringify renders a decoded JSON value the way it appears in a URL or
// header: whole-number floats print without an exponent or trailing zeros.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
