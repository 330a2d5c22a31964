// Package event decodes inbound analytics events and exposes the fields
// FQL conditions inspect.
//
// An event is a JSON object in the usual analytics tracking shape:
//
//	{
//	  "type": "track",
//	  "event": "Product Added",
//	  "userId": "u-1",
//	  "properties": {"price": 120},
//	  "traits": {"email": "a@b.io"},
//	  "context": {"traits": {"plan": "pro"}}
//	}
//
// Decoding uses fastjson; an Event owns its parsed tree and is safe for
// concurrent reads.
package event

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// Top-level field names read by FQL conditions.
const (
	FieldType       = "type"
	FieldEvent      = "event"
	FieldName       = "name"
	FieldUserID     = "userId"
	FieldProperties = "properties"
	FieldTraits     = "traits"
	FieldContext    = "context"
)

// Event is a decoded analytics event.
type Event struct {
	raw  []byte
	root *fastjson.Value
}

// Parse decodes a JSON object into an Event.
//
// Each Event owns its parsed tree, so decoding uses a fresh fastjson parser
// rather than a pooled one whose memory is reused on the next parse.
func Parse(data []byte) (*Event, error) {
	raw := make([]byte, len(data))
	copy(raw, data)

	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return newEvent(raw, v)
}

func newEvent(raw []byte, v *fastjson.Value) (*Event, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("parse event: expected object, got %s", v.Type())
	}
	return &Event{raw: raw, root: v}, nil
}

// MustParse is like Parse but panics on error. Use only in tests.
func MustParse(data string) *Event {
	ev, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return ev
}

// ParseMany decodes either a single JSON object or an array of objects.
// The input is parsed once; array elements share that parse.
func ParseMany(data []byte) ([]*Event, error) {
	raw := make([]byte, len(data))
	copy(raw, data)

	v, err := fastjson.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	if v.Type() != fastjson.TypeArray {
		ev, err := newEvent(raw, v)
		if err != nil {
			return nil, err
		}
		return []*Event{ev}, nil
	}

	arr, _ := v.Array()
	events := make([]*Event, 0, len(arr))
	for i, item := range arr {
		ev, err := newEvent(item.MarshalTo(nil), item)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Raw returns the event's original JSON.
func (e *Event) Raw() []byte {
	return e.raw
}

// Type returns the event type (track, identify, page, ...).
func (e *Event) Type() string {
	return string(e.root.GetStringBytes(FieldType))
}

// EventName returns the track event name.
func (e *Event) EventName() string {
	return string(e.root.GetStringBytes(FieldEvent))
}

// Name returns the page or screen name.
func (e *Event) Name() string {
	return string(e.root.GetStringBytes(FieldName))
}

// UserID returns the userId field.
func (e *Event) UserID() string {
	return string(e.root.GetStringBytes(FieldUserID))
}

// Field returns a top-level field, or nil when absent.
func (e *Event) Field(name string) *fastjson.Value {
	return e.root.Get(name)
}

// Property looks up properties.<path>, or nil when absent.
func (e *Event) Property(path string) *fastjson.Value {
	return lookup(e.root.Get(FieldProperties), path)
}

// Trait looks up traits.<path>, falling back to context.traits.<path>.
func (e *Event) Trait(path string) *fastjson.Value {
	if v := lookup(e.root.Get(FieldTraits), path); v != nil {
		return v
	}
	return lookup(e.root.Get(FieldContext, FieldTraits), path)
}

// lookup resolves a dotted path inside obj. A key that itself contains
// dots wins over nested traversal.
func lookup(obj *fastjson.Value, path string) *fastjson.Value {
	if obj == nil || obj.Type() != fastjson.TypeObject {
		return nil
	}
	if v := obj.Get(path); v != nil {
		return v
	}
	if !strings.Contains(path, ".") {
		return nil
	}
	return obj.Get(strings.Split(path, ".")...)
}
