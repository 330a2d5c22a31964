// Package catalog loads destination subscriptions from a directory of YAML
// and CUE files.
//
// Every action's subscribe string is parsed at load time, so an invalid FQL
// filter surfaces as a configuration error rather than a silent non-match at
// routing time.
//
// YAML files hold one destination per document:
//
//	destination: webhook
//	actions:
//	  - name: post_order
//	    subscribe: event = "Order Completed"
//
// CUE files share one value keyed by destination and action:
//
//	destination: webhook: action: post_order: subscribe: "event = \"Order Completed\""
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/fql/internal/fql"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error codes reported in LoadError.Code.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeScanError        = "E002" // Directory scan error
	ErrCodeNoFiles          = "E003" // No catalog files found
	ErrCodeLoadFailed       = "E004" // File read or decode failed
	ErrCodeNotFound         = "E005" // Path not found
	ErrCodeBuildFailed      = "E006" // CUE build failed
	ErrCodeInvalidSubscribe = "E201" // subscribe is not valid FQL
	ErrCodeInvalidAction    = "E202" // Missing or malformed action field
	ErrCodeDuplicateAction  = "E203" // Same destination/action defined twice
)

// Subscription is one destination action and its parsed filter.
type Subscription struct {
	Destination string
	Action      string
	Subscribe   string
	Description string
	Group       *fql.Group

	// File and Line locate the subscribe field in its source file.
	File string
	Line int
}

// Catalog is the result of loading a directory.
type Catalog struct {
	Subscriptions []Subscription
	FileCount     int
}

// LoadError is a catalog error with its source location when known.
type LoadError struct {
	Code    string
	Message string
	File    string
	Line    int
	Err     error
}

func (e *LoadError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Code, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Code returns the LoadError code of err, or ErrCodeGeneric.
func Code(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// Load reads every .yaml, .yml and .cue file directly inside dir.
//
// YAML files are read in lexical order, then the CUE files are unified and
// their actions appended sorted by destination and action. With
// LoadModeFailFast the first error stops loading; with LoadModeCollectAll
// every invalid action is reported and the valid ones are still returned.
func Load(dir string, mode LoadMode) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	yamlFiles, cueFiles, err := findFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(yamlFiles) == 0 && len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no YAML or CUE files found in %s", dir)}}
	}

	l := &loader{
		mode: mode,
		seen: make(map[[2]string]Subscription),
		cat:  &Catalog{FileCount: len(yamlFiles) + len(cueFiles)},
	}

	for _, path := range yamlFiles {
		if !l.loadYAML(path) {
			return l.cat, l.errs
		}
	}
	if len(cueFiles) > 0 {
		l.loadCUE(cueFiles)
	}

	return l.cat, l.errs
}

// loader accumulates subscriptions and errors across files.
type loader struct {
	mode LoadMode
	seen map[[2]string]Subscription
	cat  *Catalog
	errs []error
}

// fail records err and reports whether loading may continue.
func (l *loader) fail(err error) bool {
	l.errs = append(l.errs, err)
	return l.mode == LoadModeCollectAll
}

// add parses the subscription's filter and appends it. It reports whether
// loading may continue.
func (l *loader) add(sub Subscription) bool {
	if sub.Destination == "" || sub.Action == "" {
		return l.fail(&LoadError{
			Code:    ErrCodeInvalidAction,
			Message: "destination and action name are required",
			File:    sub.File,
			Line:    sub.Line,
		})
	}

	key := [2]string{sub.Destination, sub.Action}
	if prev, ok := l.seen[key]; ok {
		return l.fail(&LoadError{
			Code:    ErrCodeDuplicateAction,
			Message: fmt.Sprintf("%s/%s already defined in %s", sub.Destination, sub.Action, prev.File),
			File:    sub.File,
			Line:    sub.Line,
		})
	}
	// Claimed before parsing, so an invalid first definition still wins.
	l.seen[key] = sub

	g, err := fql.Parse(sub.Subscribe)
	if err != nil {
		return l.fail(&LoadError{
			Code:    ErrCodeInvalidSubscribe,
			Message: fmt.Sprintf("%s/%s: %v", sub.Destination, sub.Action, err),
			File:    sub.File,
			Line:    sub.Line,
			Err:     err,
		})
	}
	sub.Group = g

	l.cat.Subscriptions = append(l.cat.Subscriptions, sub)
	return true
}

// findFiles lists catalog files directly inside dir in lexical order.
func findFiles(dir string) (yamlFiles, cueFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		case ".cue":
			cueFiles = append(cueFiles, path)
		}
	}
	sort.Strings(yamlFiles)
	sort.Strings(cueFiles)
	return yamlFiles, cueFiles, nil
}
