package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/fql/internal/fql"
)

// candidatePaths returns the JSON paths a condition may read, in lookup
// order. The first path present in the payload wins, matching the event
// accessors: a literal dotted key beats nested traversal, and traits fall
// back to context.traits.
func candidatePaths(c *fql.Condition) ([]string, error) {
	switch c.Type {
	case fql.TypeEventType:
		return []string{jsonPath("type")}, nil
	case fql.TypeEvent:
		return []string{jsonPath("event")}, nil
	case fql.TypeName:
		return []string{jsonPath("name")}, nil
	case fql.TypeUserID:
		return []string{jsonPath("userId")}, nil
	case fql.TypeEventProperty:
		return namedPaths(c.Name, []string{"properties"})
	case fql.TypeEventTrait:
		direct, err := namedPaths(c.Name, []string{"traits"})
		if err != nil {
			return nil, err
		}
		fallback, err := namedPaths(c.Name, []string{"context", "traits"})
		if err != nil {
			return nil, err
		}
		return append(direct, fallback...), nil
	default:
		return nil, fmt.Errorf("unsupported condition type %q", c.Type)
	}
}

func namedPaths(name string, prefix []string) ([]string, error) {
	if name == "" || strings.Contains(name, `"`) {
		return nil, fmt.Errorf("invalid field name %q", name)
	}

	literal := jsonPath(append(append([]string{}, prefix...), name)...)
	if !strings.Contains(name, ".") {
		return []string{literal}, nil
	}

	nested := jsonPath(append(append([]string{}, prefix...), strings.Split(name, ".")...)...)
	return []string{literal, nested}, nil
}

// jsonPath builds a SQLite JSON path with every label quoted, e.g.
// $."properties"."a-b".
func jsonPath(labels ...string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, l := range labels {
		sb.WriteString(`."`)
		sb.WriteString(l)
		sb.WriteString(`"`)
	}
	return sb.String()
}
