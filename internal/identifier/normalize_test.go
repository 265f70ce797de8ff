package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "unify/pkg/domain-errors"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases and trims", "  Maria.Lopez@Example.COM  ", "maria.lopez@example.com"},
		{"already canonical", "rex@farm.org", "rex@farm.org"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeEmail(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no at sign", "maria.example.com"},
		{"two at signs", "maria@@example.com"},
		{"empty local part", "@example.com"},
		{"domain without dot", "maria@localhost"},
		{"domain leading dot", "maria@.example.com"},
		{"domain trailing dot", "maria@example."},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			_, err := NormalizeEmail(tc.raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		region string
		want   string
	}{
		{"ten digits get default region", "(555) 867-5309", "", "+15558675309"},
		{"formatting stripped", "555.867.5309", "1", "+15558675309"},
		{"eleven digits with region pass through", "1-555-867-5309", "1", "+15558675309"},
		{"custom region prefix", "2079460958", "44", "+442079460958"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw, tc.region)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	invalid := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"letters only", "call me"},
		{"too short", "867-5309"},
		{"too long", "123456789012345"},
		{"eleven digits wrong region", "25558675309"},
	}
	for _, tc := range invalid {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			_, err := NormalizePhone(tc.raw, "1")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestNormalizeDispatchesByKind(t *testing.T) {
	got, err := Normalize(KindEmail, "A@B.co", "1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", got)

	got, err = Normalize(KindPhone, "5558675309", "1")
	require.NoError(t, err)
	assert.Equal(t, "+15558675309", got)

	_, err = Normalize(Kind("fax"), "whatever", "1")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseKind(t *testing.T) {
	for _, known := range []string{"email", "phone"} {
		got, err := ParseKind(known)
		require.NoError(t, err)
		assert.Equal(t, Kind(known), got)
	}
	_, err := ParseKind("fax")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
