// internal/notification/render.go
package notification

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Render substitutes every {{identifier}} with the string form of
// data[identifier]. Placeholders with no matching key stay verbatim.
func Render(tmpl string, data map[string]interface{}) string {
	return RenderWith(tmpl, data, nil)
}

// RenderWith is Render with each substituted value passed through escape.
func RenderWith(tmpl string, data map[string]interface{}, escape func(string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := data[key]
		if !ok {
			return match
		}
		s := Stringify(v)
		if escape != nil {
			s = escape(s)
		}
		return s
	})
}

func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case map[string]interface{}, []interface{}, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
