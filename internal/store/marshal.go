package store

import (
	"fmt"

	"github.com/roach88/fql/internal/fql"
)

// marshalAST converts a parsed tree to JSON TEXT for storage.
// Comparison operators are stored unescaped ("<=" rather than "\u003c=").
func marshalAST(g *fql.Group) (string, error) {
	data, err := fql.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshal ast: %w", err)
	}
	return string(data), nil
}

// unmarshalAST parses stored JSON TEXT back into a tree and checks its
// invariants, so a hand-edited row cannot yield a malformed tree.
func unmarshalAST(data string) (*fql.Group, error) {
	node, err := fql.UnmarshalNode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal ast: %w", err)
	}
	g, ok := node.(*fql.Group)
	if !ok {
		return nil, fmt.Errorf("unmarshal ast: root is %T, not a group", node)
	}
	if err := fql.Validate(g); err != nil {
		return nil, fmt.Errorf("unmarshal ast: %w", err)
	}
	return g, nil
}
