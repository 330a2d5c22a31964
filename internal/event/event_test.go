package event

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

const trackEvent = `{
	"type": "track",
	"event": "Product Added",
	"userId": "u-1",
	"properties": {"price": 120, "product": {"sku": "A-1"}, "a.b": "literal"},
	"traits": {"email": "a@b.io"},
	"context": {"traits": {"plan": "pro", "email": "ctx@b.io"}}
}`

func TestParse_Accessors(t *testing.T) {
	ev, err := Parse([]byte(trackEvent))
	require.NoError(t, err)

	assert.Equal(t, "track", ev.Type())
	assert.Equal(t, "Product Added", ev.EventName())
	assert.Equal(t, "u-1", ev.UserID())
	assert.Empty(t, ev.Name())
}

func TestEvent_Property(t *testing.T) {
	ev := MustParse(trackEvent)

	price := ev.Property("price")
	require.NotNil(t, price)
	assert.Equal(t, fastjson.TypeNumber, price.Type())
	assert.Equal(t, 120.0, price.GetFloat64())

	sku := ev.Property("product.sku")
	require.NotNil(t, sku)
	assert.Equal(t, "A-1", string(sku.GetStringBytes()))

	literal := ev.Property("a.b")
	require.NotNil(t, literal)
	assert.Equal(t, "literal", string(literal.GetStringBytes()))

	assert.Nil(t, ev.Property("missing"))
	assert.Nil(t, ev.Property("product.missing"))
}

func TestEvent_TraitFallsBackToContext(t *testing.T) {
	ev := MustParse(trackEvent)

	assert.Equal(t, "a@b.io", string(ev.Trait("email").GetStringBytes()))
	assert.Equal(t, "pro", string(ev.Trait("plan").GetStringBytes()))
	assert.Nil(t, ev.Trait("missing"))
}

func TestEvent_PropertiesNotObject(t *testing.T) {
	ev := MustParse(`{"type":"track","properties":[1,2]}`)
	assert.Nil(t, ev.Property("0"))
}

func TestParse_Errors(t *testing.T) {
	tests := []string{``, `{`, `[1]`, `"track"`}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParse_CopiesInput(t *testing.T) {
	data := []byte(`{"type":"track"}`)
	ev, err := Parse(data)
	require.NoError(t, err)

	copy(data, `{"type":"xxxxx"}`)
	assert.Equal(t, "track", ev.Type())
	assert.JSONEq(t, `{"type":"track"}`, string(ev.Raw()))
}

func TestParseMany(t *testing.T) {
	events, err := ParseMany([]byte(`[{"type":"track"},{"type":"identify"}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "identify", events[1].Type())

	single, err := ParseMany([]byte(`{"type":"page"}`))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "page", single[0].Type())

	_, err = ParseMany([]byte(`[{"type":"track"}, 3]`))
	assert.ErrorContains(t, err, "events[1]")
}

func TestParseMany_ElementsOwnTheirTree(t *testing.T) {
	data := []byte(`[ {"type":"track", "properties":{"price":10}}, {"type":"identify"} ]`)
	events, err := ParseMany(data)
	require.NoError(t, err)
	require.Len(t, events, 2)

	copy(data, bytes.Repeat([]byte(" "), len(data)))

	assert.Equal(t, "track", events[0].Type())
	assert.Equal(t, 10, events[0].Property("price").GetInt())
	assert.JSONEq(t, `{"type":"track","properties":{"price":10}}`, string(events[0].Raw()))
	assert.Equal(t, "identify", events[1].Type())
}

func TestParseMany_Errors(t *testing.T) {
	_, err := ParseMany([]byte(`[{"type":`))
	assert.ErrorContains(t, err, "parse events")

	_, err = ParseMany([]byte(`"track"`))
	assert.ErrorContains(t, err, "expected object")
}
