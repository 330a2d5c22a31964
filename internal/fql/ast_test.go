package fql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_Negate(t *testing.T) {
	assert.Equal(t, OpNotContains, OpContains.Negate())
	assert.Equal(t, OpNotStartsWith, OpStartsWith.Negate())
	assert.Equal(t, OpNotEndsWith, OpEndsWith.Negate())
	assert.Equal(t, OpEqual, OpEqual.Negate())

	for _, op := range []Operator{OpContains, OpStartsWith, OpEndsWith} {
		assert.True(t, op.Negate().Negated())
		assert.Equal(t, op, op.Negate().Positive())
	}
}

func TestOperator_Classes(t *testing.T) {
	assert.True(t, OpGreaterEqual.Comparison())
	assert.False(t, OpContains.Comparison())
	assert.True(t, OpNotExists.Existence())
	assert.False(t, OpEqual.Existence())
	assert.True(t, OpNotEndsWith.Valid())
	assert.False(t, Operator("==").Valid())
}

func TestConditionType_Named(t *testing.T) {
	assert.True(t, TypeEventProperty.Named())
	assert.True(t, TypeEventTrait.Named())
	assert.False(t, TypeUserID.Named())
	assert.False(t, ConditionType("context").Valid())
}

func TestCondition_MarshalJSON(t *testing.T) {
	c := &Condition{Type: TypeEventProperty, Name: "price", Operator: OpGreaterEqual, Value: Number(100)}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event-property","name":"price","operator":">=","value":100}`, string(data))
}

func TestCondition_MarshalJSONOmitsEmptyFields(t *testing.T) {
	data, err := MarshalIndent(&Condition{Type: TypeUserID, Operator: OpExists})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "name")
	assert.NotContains(t, string(data), "value")
}

func TestMarshalIndent_DoesNotEscapeOperators(t *testing.T) {
	data, err := MarshalIndent(MustParse(`properties.x <= 1 and properties.y > 2`))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"<="`)
	assert.Contains(t, string(data), `">"`)
}

func TestGroup_JSONRoundTrip(t *testing.T) {
	inputs := []string{
		`type = "track"`,
		`(event = "A" and properties.price >= 100.5) or traits.vip = true`,
		`userId != null and !contains(properties.tag, "x") and match(event, "*ed")`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			original := MustParse(input)

			data, err := json.Marshal(original)
			require.NoError(t, err)

			var decoded Group
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, original, &decoded)
			assert.NoError(t, Validate(&decoded))
		})
	}
}

func TestUnmarshalNode_Condition(t *testing.T) {
	node, err := UnmarshalNode([]byte(`{"type":"event","operator":"=","value":"A"}`))
	require.NoError(t, err)
	assert.Equal(t, &Condition{Type: TypeEvent, Operator: OpEqual, Value: String("A")}, node)
}

func TestUnmarshalNode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"bad child", `{"type":"group","operator":"and","children":[{"type":"event","operator":"=","value":[1]}]}`},
		{"object value", `{"type":"event","operator":"=","value":{"a":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalNode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestGroup_UnmarshalJSONRejectsCondition(t *testing.T) {
	var g Group
	err := json.Unmarshal([]byte(`{"type":"event","operator":"=","value":"A"}`), &g)
	assert.Error(t, err)
}

func TestValidate_ParsedTreesAreValid(t *testing.T) {
	for _, input := range canonicalCorpus {
		assert.NoError(t, Validate(MustParse(input)), input)
	}
}
