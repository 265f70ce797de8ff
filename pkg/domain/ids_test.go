package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "unify/pkg/domain-errors"
)

func TestParseEntityID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEntityID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEntityID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseEntityID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.NewString()
		got, err := ParseEntityID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, got.String())
		assert.False(t, got.IsNil())
	})

	t.Run("rejects uppercase variant of otherwise valid input", func(t *testing.T) {
		// uuid.Parse accepts uppercase; parsing must still round-trip to the
		// canonical lowercase form so ids compare as strings.
		raw := strings.ToUpper(uuid.NewString())
		got, err := ParseEntityID(raw)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(raw), got.String())
	})
}

func TestParseCandidateAndRunIDs(t *testing.T) {
	_, err := ParseCandidateID("nope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseRunID("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	runID, err := ParseRunID(uuid.NewString())
	require.NoError(t, err)
	assert.False(t, runID.IsNil())
}

func TestNewIDsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NewEntityID(), NewEntityID())
	assert.NotEqual(t, NewCandidateID(), NewCandidateID())
	assert.False(t, NewRunID().IsNil())
	assert.False(t, NewRecordID().IsNil())
}

func TestParseEntityType(t *testing.T) {
	for _, known := range AllEntityTypes() {
		got, err := ParseEntityType(known.String())
		require.NoError(t, err)
		assert.Equal(t, known, got)
	}

	_, err := ParseEntityType("spaceship")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseEntityType("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
