// Package phonetic converts entity names into phonetic codes used as
// blocking keys and as a match signal. The encoder degrades gracefully:
// when no backend is configured it reports Enabled=false and consumers
// skip the phonetic signal instead of scoring it as a miss.
package phonetic

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// NameCodes holds the phonetic codes for the first and last tokens of a
// name. Enabled is false when the backend is unavailable, in which case
// both codes are empty.
type NameCodes struct {
	First   string
	Last    string
	Enabled bool
}

// Backend encodes a single lowercase name token into a phonetic code.
type Backend interface {
	Encode(token string) string
}

const cacheSize = 4096

// Encoder tokenizes full names and encodes the first and last tokens.
// Token encodings are memoized since name vocabularies repeat heavily
// within a batch.
type Encoder struct {
	backend Backend
	cache   *lru.Cache[string, string]
}

// New returns an encoder backed by the given backend.
func New(backend Backend) *Encoder {
	cache, _ := lru.New[string, string](cacheSize)
	return &Encoder{backend: backend, cache: cache}
}

// NewDisabled returns an encoder in degraded mode. EncodeName always
// returns empty codes with Enabled=false.
func NewDisabled() *Encoder {
	return &Encoder{}
}

// Enabled reports whether a phonetic backend is configured.
func (e *Encoder) Enabled() bool {
	return e.backend != nil
}

// EncodeName encodes the first and last tokens of a full name. A
// single-token name yields the same code for both positions so that
// blocking on the last-name code still covers mononyms.
func (e *Encoder) EncodeName(full string) NameCodes {
	if e.backend == nil {
		return NameCodes{}
	}
	tokens := tokenize(full)
	if len(tokens) == 0 {
		return NameCodes{Enabled: true}
	}
	first := e.encodeToken(tokens[0])
	last := first
	if len(tokens) > 1 {
		last = e.encodeToken(tokens[len(tokens)-1])
	}
	return NameCodes{First: first, Last: last, Enabled: true}
}

func (e *Encoder) encodeToken(token string) string {
	if code, ok := e.cache.Get(token); ok {
		return code
	}
	code := e.backend.Encode(token)
	e.cache.Add(token, code)
	return code
}

// tokenize lowercases the name and splits it on anything that is not a
// letter, so "O'Brien-Smith" yields ["o", "brien", "smith"].
func tokenize(full string) []string {
	return strings.FieldsFunc(strings.ToLower(full), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
}
