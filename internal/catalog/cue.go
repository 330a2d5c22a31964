package catalog

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// schema constrains the shape of CUE catalog files.
const schema = `
#Action: close({
	subscribe:   string
	description?: string
})

destination: [string]: close({
	description?: string
	action: [string]: #Action
})
`

// loadCUE unifies all CUE files with the schema and adds their actions.
func (l *loader) loadCUE(files []string) {
	ctx := cuecontext.New()
	value := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := value.Err(); err != nil {
		l.fail(&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("compiling schema: %v", err)})
		return
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			if !l.fail(&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("failed to read file: %v", err), File: path}) {
				return
			}
			continue
		}
		fileVal := ctx.CompileBytes(data, cue.Filename(path))
		if err := fileVal.Err(); err != nil {
			if !l.fail(cueLoadError(ErrCodeLoadFailed, err, path)) {
				return
			}
			continue
		}
		value = value.Unify(fileVal)
	}

	destinations := value.LookupPath(cue.ParsePath("destination"))
	if !destinations.Exists() {
		return
	}
	if err := destinations.Err(); err != nil {
		l.fail(cueLoadError(ErrCodeBuildFailed, err, ""))
		return
	}

	subs, errs := cueSubscriptions(destinations)
	for _, err := range errs {
		if !l.fail(err) {
			return
		}
	}
	for _, sub := range subs {
		if !l.add(sub) {
			return
		}
	}
}

// cueSubscriptions extracts every action, sorted by destination and action.
func cueSubscriptions(destinations cue.Value) ([]Subscription, []error) {
	var subs []Subscription
	var errs []error

	destIter, err := destinations.Fields()
	if err != nil {
		return nil, []error{cueLoadError(ErrCodeBuildFailed, err, "")}
	}
	for destIter.Next() {
		destination := destIter.Label()
		if err := destIter.Value().Err(); err != nil {
			errs = append(errs, cueLoadError(ErrCodeInvalidAction, err, ""))
			continue
		}
		actions := destIter.Value().LookupPath(cue.ParsePath("action"))
		if !actions.Exists() {
			continue
		}
		actIter, err := actions.Fields()
		if err != nil {
			errs = append(errs, cueLoadError(ErrCodeInvalidAction, err, ""))
			continue
		}
		for actIter.Next() {
			sub, err := cueSubscription(destination, actIter.Label(), actIter.Value())
			if err != nil {
				errs = append(errs, err)
				continue
			}
			subs = append(subs, sub)
		}
	}

	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].Destination != subs[j].Destination {
			return subs[i].Destination < subs[j].Destination
		}
		return subs[i].Action < subs[j].Action
	})
	return subs, errs
}

func cueSubscription(destination, action string, v cue.Value) (Subscription, error) {
	if err := v.Validate(); err != nil {
		return Subscription{}, cueLoadError(ErrCodeInvalidAction, err, "")
	}

	subVal := v.LookupPath(cue.ParsePath("subscribe"))
	if !subVal.IsConcrete() {
		pos := v.Pos()
		return Subscription{}, &LoadError{
			Code:    ErrCodeInvalidAction,
			Message: fmt.Sprintf("%s/%s: subscribe is required", destination, action),
			File:    pos.Filename(),
			Line:    pos.Line(),
		}
	}
	subscribe, err := subVal.String()
	if err != nil {
		return Subscription{}, cueLoadError(ErrCodeInvalidAction, err, "")
	}

	pos := subVal.Pos()
	var description string
	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.IsConcrete() {
		description, _ = descVal.String()
	}

	return Subscription{
		Destination: destination,
		Action:      action,
		Subscribe:   subscribe,
		Description: description,
		File:        pos.Filename(),
		Line:        pos.Line(),
	}, nil
}

// cueLoadError converts a CUE error, taking the position of its first entry.
func cueLoadError(code string, err error, file string) *LoadError {
	le := &LoadError{Code: code, Message: err.Error(), File: file, Err: err}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return le
	}
	first := errs[0]
	le.Message = first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		setPos(le, positions[0])
	}
	return le
}

func setPos(le *LoadError, pos token.Pos) {
	if !pos.IsValid() {
		return
	}
	le.File = pos.Filename()
	le.Line = pos.Line()
}
