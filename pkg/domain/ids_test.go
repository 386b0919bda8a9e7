package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dealroom/pkg/domain-errors"
)

func TestParseDealID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDealID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects whitespace", func(t *testing.T) {
		_, err := ParseDealID("   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts plain identifier", func(t *testing.T) {
		id, err := ParseDealID("deal-2031")
		require.NoError(t, err)
		assert.Equal(t, DealID("deal-2031"), id)
	})
}

func TestParseObservationID(t *testing.T) {
	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseObservationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseObservationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		id, err := ParseObservationID(u.String())
		require.NoError(t, err)
		assert.Equal(t, ObservationID(u), id)
	})
}

func TestParseObjectType(t *testing.T) {
	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := ParseObjectType("spreadsheet")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts supported types with stable prefixes", func(t *testing.T) {
		cases := map[string]string{
			"application":    "app",
			"infrastructure": "infra",
			"person":         "person",
		}
		for raw, prefix := range cases {
			ot, err := ParseObjectType(raw)
			require.NoError(t, err)
			assert.Equal(t, prefix, ot.Prefix())
		}
	})
}
