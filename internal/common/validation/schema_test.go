package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const envelopeSchema = `{
  "type": "object",
  "required": ["response"],
  "properties": {
    "response": {
      "type": "object",
      "required": ["body"]
    }
  }
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s, err := Compile(envelopeSchema)
	require.NoError(t, err)

	res, err := s.ValidateBytes([]byte(`{"response":{"body":{"items":[]}}}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res, err = s.ValidateBytes([]byte(`{"response":{"header":{}}}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "REQUIRED", res.Errors[0].Code)
	assert.Contains(t, res.Summary(3), "body")
}

func TestSchema_ValidateBytes_NotJSON(t *testing.T) {
	s := MustCompile(envelopeSchema)
	_, err := s.ValidateBytes([]byte(`<response/>`))
	assert.Error(t, err)
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"name"},
	})

	res, err := s.ValidateValue(map[string]interface{}{"name": "공사"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}
