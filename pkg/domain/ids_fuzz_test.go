package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseEntityID checks that parsing never panics on arbitrary input and
// that every accepted value round-trips through String.
func FuzzParseEntityID(f *testing.F) {
	f.Add("")
	f.Add("not-a-uuid")
	f.Add(uuid.Nil.String())
	f.Add(uuid.NewString())

	f.Fuzz(func(t *testing.T, s string) {
		got, err := ParseEntityID(s)
		if err != nil {
			return
		}
		if got.IsNil() {
			t.Errorf("accepted %q but produced the nil id", s)
		}
		if _, err := ParseEntityID(got.String()); err != nil {
			t.Errorf("round-trip of %q failed: %v", s, err)
		}
	})
}
