package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJSONObject_SkipsProse(t *testing.T) {
	in := "Sure! Here is the assessment:\n```json\n{\"score\": 0.8, \"issues\": [\"blur\"]}\n```\nThanks {not json}"
	got, err := FirstJSONObject(in)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 0.8, "issues": ["blur"]}`, got)
}

func TestFirstJSONObject_BracesInStrings(t *testing.T) {
	in := `{"summary_text": "set {a, b} and \"quoted }\"", "n": {"x": 1}} trailing }`
	got, err := FirstJSONObject(in)
	require.NoError(t, err)
	assert.Equal(t, `{"summary_text": "set {a, b} and \"quoted }\"", "n": {"x": 1}}`, got)
}

func TestFirstJSONObject_Unbalanced(t *testing.T) {
	_, err := FirstJSONObject(`{"score": 0.8`)
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = FirstJSONObject("no braces at all")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestObjectAccessors(t *testing.T) {
	m, err := Object(`prefix {"score": "0.75", "classification": "high", "issues": ["a", "", "b"], "questions": [{"q": 1}, "x"]}`)
	require.NoError(t, err)

	score, ok := Float(m, "score")
	assert.True(t, ok)
	assert.InDelta(t, 0.75, score, 1e-9)

	cls, ok := String(m, "classification")
	assert.True(t, ok)
	assert.Equal(t, "high", cls)

	assert.Equal(t, []string{"a", "b"}, Strings(m, "issues"))
	assert.Len(t, Objects(m, "questions"), 1)

	_, ok = Float(m, "missing")
	assert.False(t, ok)
}
