package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlDestination is one YAML document.
type yamlDestination struct {
	Destination string       `yaml:"destination"`
	Description string       `yaml:"description,omitempty"`
	Actions     []yamlAction `yaml:"actions"`
}

// yamlAction keeps subscribe as a node so errors can carry its line.
type yamlAction struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Subscribe   yaml.Node `yaml:"subscribe"`
}

// loadYAML decodes every document in path. It reports whether loading may
// continue.
func (l *loader) loadYAML(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return l.fail(&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("failed to read file: %v", err), File: path})
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	for {
		var doc yamlDestination
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			// The decoder cannot resume after a syntax error.
			l.fail(&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("failed to parse YAML: %v", err), File: path, Err: err})
			return l.mode == LoadModeCollectAll
		}

		if doc.Destination == "" {
			if !l.fail(&LoadError{Code: ErrCodeInvalidAction, Message: "destination is required", File: path}) {
				return false
			}
			continue
		}

		for _, action := range doc.Actions {
			sub, err := yamlSubscription(path, doc.Destination, action)
			if err != nil {
				if !l.fail(err) {
					return false
				}
				continue
			}
			if !l.add(sub) {
				return false
			}
		}
	}
}

func yamlSubscription(path, destination string, action yamlAction) (Subscription, error) {
	node := action.Subscribe
	if node.Kind == 0 {
		return Subscription{}, &LoadError{
			Code:    ErrCodeInvalidAction,
			Message: fmt.Sprintf("%s/%s: subscribe is required", destination, action.Name),
			File:    path,
		}
	}
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!str" {
		return Subscription{}, &LoadError{
			Code:    ErrCodeInvalidAction,
			Message: fmt.Sprintf("%s/%s: subscribe must be a string", destination, action.Name),
			File:    path,
			Line:    node.Line,
		}
	}
	return Subscription{
		Destination: destination,
		Action:      action.Name,
		Subscribe:   node.Value,
		Description: action.Description,
		File:        path,
		Line:        node.Line,
	}, nil
}
