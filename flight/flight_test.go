package flight

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlightNumber(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		want   int
		wantOK bool
	}{
		{"int", 215, 215, true},
		{"int64", int64(7), 7, true},
		{"integral float", float64(215), 215, true},
		{"fractional float", 21.5, 0, false},
		{"float above int range", 1e20, 0, false},
		{"float below int range", -1e20, 0, false},
		{"infinite float", math.Inf(1), 0, false},
		{"NaN", math.NaN(), 0, false},
		{"json number", json.Number("42"), 42, true},
		{"padded string", "  215 ", 215, true},
		{"nil", nil, 0, false},
		{"empty", "", 0, false},
		{"blank", "   ", 0, false},
		{"letters", "6E215", 0, false},
		{"word", "unknown", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeFlightNumber(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-06-23", "2024-06-23"},
		{"2024-6-3", "2024-06-03"},
		{"23-06-2024", "2024-06-23"},
		{"2024/06/23", "2024-06-23"},
		{"23/06/2024", "2024-06-23"},
		{"June 23, 2024", "2024-06-23"},
		{"june 23, 2024", "2024-06-23"},
		{"23 June 2024", "2024-06-23"},
		{"Jun 23, 2024", "2024-06-23"},
		{"23 Jun 2024", "2024-06-23"},
		{" 3 Jun 2024 ", "2024-06-03"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeDate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := NormalizeDate(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "normalizing must be idempotent")
		})
	}
}

func TestNormalizeDateEmptyIsNotAnError(t *testing.T) {
	got, err := NormalizeDate("  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeDateRejects(t *testing.T) {
	for _, raw := range []string{"yesterday", "2024-13-01", "31/02/2024", "06-23-2024", "unknown"} {
		_, err := NormalizeDate(raw)
		assert.True(t, errors.Is(err, ErrInvalidDate), "%q should be rejected", raw)
	}
}

func TestNormalizeCarrier(t *testing.T) {
	assert.Equal(t, "6E", NormalizeCarrier(" 6e "))
	assert.Equal(t, "", NormalizeCarrier(""))
}

func TestFilterQuery(t *testing.T) {
	fn := 215

	t.Run("all fields", func(t *testing.T) {
		q := BuildFilter("6E", &fn, "2024-06-23").Query()
		assert.Equal(t, map[string]any{
			FieldCarrier:      "6E",
			FieldFlightNumber: 215,
			FieldDateOfOrigin: "2024-06-23",
		}, q)
	})

	t.Run("absent fields are omitted", func(t *testing.T) {
		f := BuildFilter("", &fn, "")
		assert.Equal(t, map[string]any{FieldFlightNumber: 215}, f.Query())
		assert.False(t, f.IsEmpty())
	})

	t.Run("empty", func(t *testing.T) {
		f := BuildFilter("", nil, "")
		assert.Empty(t, f.Query())
		assert.True(t, f.IsEmpty())
	})

	t.Run("values are leaves", func(t *testing.T) {
		q := BuildFilter(`6E", "$where": "1`, nil, "").Query()
		require.Len(t, q, 1)
		assert.Equal(t, `6E", "$where": "1`, q[FieldCarrier])
	})
}
