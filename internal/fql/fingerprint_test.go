package fql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_IgnoresFormatting(t *testing.T) {
	a, err := FingerprintString(`type = "track" and properties.price >= 100`)
	require.NoError(t, err)

	b, err := FingerprintString(`(type="track")   and (properties.price>=100.0)`)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_UnicodeComposition(t *testing.T) {
	composed := MustParse("event = \"Caf\u00e9\"")
	decomposed := MustParse("event = \"Cafe\u0301\"")

	assert.Equal(t, composed, decomposed, "string literals are NFC-normalized")

	a, err := Fingerprint(composed)
	require.NoError(t, err)
	b, err := Fingerprint(decomposed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprint_HandBuiltTreeIsNotNormalized(t *testing.T) {
	nfd := NewGroup(And, &Condition{Type: TypeEvent, Operator: OpEqual, Value: String("Cafe\u0301")})

	a, err := Fingerprint(nfd)
	require.NoError(t, err)
	assert.NotEqual(t, mustFingerprint(t, "event = \"Caf\u00e9\""), a,
		"a tree holding decomposed text matches different events")
}

func TestFingerprint_DistinguishesSemantics(t *testing.T) {
	tests := [][2]string{
		{`properties.price >= 100`, `properties.price > 100`},
		{`properties.code = 100`, `properties.code = "100"`},
		{`event = "A" and event = "B"`, `event = "B" and event = "A"`},
		{`userId != null`, `userId = null`},
	}

	for _, pair := range tests {
		a, err := FingerprintString(pair[0])
		require.NoError(t, err)
		b, err := FingerprintString(pair[1])
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "%s vs %s", pair[0], pair[1])
	}
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	canonical := `type = "track"`
	fp := mustFingerprint(t, canonical)
	assert.NotEqual(t, hashWithDomain("other/v1", []byte(canonical)), fp)
	assert.Equal(t, hashWithDomain(DomainSubscription, []byte(canonical)), fp)
}

func TestFingerprint_Errors(t *testing.T) {
	_, err := FingerprintString("typo")
	assert.True(t, IsParseError(err))

	_, err = Fingerprint(NewGroup(And))
	var ge *GenerateError
	assert.ErrorAs(t, err, &ge)
}

func mustFingerprint(t *testing.T, input string) string {
	t.Helper()
	fp, err := FingerprintString(input)
	require.NoError(t, err)
	return fp
}
