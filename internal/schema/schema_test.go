package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"user_id"},
	"properties": map[string]interface{}{
		"user_id": map[string]interface{}{"type": "integer"},
		"email":   map[string]interface{}{"type": "string"},
	},
}

func TestValidate_Valid(t *testing.T) {
	violations, err := Validate(userSchema, map[string]interface{}{
		"user_id": float64(1234),
		"email":   "aj@abc.com",
	})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestValidate_MissingRequired(t *testing.T) {
	violations, err := Validate(userSchema, map[string]interface{}{
		"email": "aj@abc.com",
	})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "user_id")
}

func TestValidate_WrongType(t *testing.T) {
	violations, err := Validate(userSchema, map[string]interface{}{
		"user_id": "not-a-number",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, violations)
}

// gojsonschema's parser panics on documents like {"type":[12]}; both entry
// points must turn that into a plain error.
func TestValidate_BadSchema(t *testing.T) {
	_, err := Validate(map[string]interface{}{
		"type": []interface{}{float64(12)},
	}, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(userSchema))
	assert.Error(t, Check(nil))

	err := Check(map[string]interface{}{"type": []interface{}{float64(12)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid json schema")
}
