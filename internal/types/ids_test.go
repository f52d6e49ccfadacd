package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	require.NoError(t, id.Validate())
	assert.False(t, id.IsZero())
	assert.NotEqual(t, id, NewID())
}

func TestParseID(t *testing.T) {
	t.Run("valid UUID", func(t *testing.T) {
		id, err := ParseID("a1b2c3d4-e5f6-4789-8abc-def012345678")
		require.NoError(t, err)
		assert.Equal(t, "a1b2c3d4-e5f6-4789-8abc-def012345678", id.String())
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ParseID("")
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseID("not-a-uuid")
		assert.Error(t, err)
	})
}

func TestIDValidate(t *testing.T) {
	assert.Error(t, ID("").Validate())
	assert.Error(t, ID("garbage").Validate())
	assert.NoError(t, NewID().Validate())
}

func TestIDJSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIDJSONZeroValue(t *testing.T) {
	data, err := json.Marshal(ID(""))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var decoded ID
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsZero())
}

func TestIDUnmarshalRejectsInvalid(t *testing.T) {
	var decoded ID
	assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`42`), &decoded))
}
