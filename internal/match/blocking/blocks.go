package blocking

import (
	"fmt"

	"unify/internal/match/models"
	id "unify/pkg/domain"
)

const (
	// phoneticPrefixLen is how many leading characters of the last-name
	// code form the phonetic blocking key.
	phoneticPrefixLen = 4

	// maxBlockSize caps one block's member count. A block this large is a
	// degenerate key (an empty-ish name, a shared office phone) and would
	// explode quadratically, so it is skipped and counted instead.
	maxBlockSize = 200
)

// Pair is a same-block pair of entities worth scoring, tagged with the
// blocking key that surfaced it.
type Pair struct {
	A, B *models.EntitySignals
	Key  string
}

// discoverPairs groups entities by blocking key and emits every unordered
// pair within a block. Pairs sharing no blocking key are never discovered;
// that false-negative trade-off is what keeps generation near-linear.
func discoverPairs(signals []*models.EntitySignals) (pairs []Pair, oversized int) {
	blocks := make(map[string][]int)
	for i, s := range signals {
		for _, key := range blockKeys(s) {
			blocks[key] = append(blocks[key], i)
		}
	}

	type pairKey struct{ a, b id.EntityID }
	seen := make(map[pairKey]struct{})
	for key, members := range blocks {
		if len(members) < 2 {
			continue
		}
		if len(members) > maxBlockSize {
			oversized++
			continue
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := signals[members[i]], signals[members[j]]
				pa, pb := models.OrderPair(a.Entity.ID, b.Entity.ID)
				pk := pairKey{a: pa, b: pb}
				if _, dup := seen[pk]; dup {
					continue
				}
				seen[pk] = struct{}{}
				pairs = append(pairs, Pair{A: a, B: b, Key: key})
			}
		}
	}
	return pairs, oversized
}

// blockKeys derives the blocking keys for one entity: the phonetic prefix
// of the last-name code, every normalized identifier, and the shared
// context link for the type (address for people, owner for animals).
func blockKeys(s *models.EntitySignals) []string {
	var keys []string
	if s.Codes.Enabled && s.Codes.Last != "" {
		prefix := s.Codes.Last
		if len(prefix) > phoneticPrefixLen {
			prefix = prefix[:phoneticPrefixLen]
		}
		keys = append(keys, "ph:"+prefix)
	}
	for _, ident := range s.Identifiers {
		keys = append(keys, fmt.Sprintf("id:%s:%s", ident.Kind, ident.Value))
	}
	switch s.Entity.Type {
	case id.EntityTypePerson:
		if !s.Entity.PlaceID.IsNil() {
			keys = append(keys, "ctx:place:"+s.Entity.PlaceID.String())
		}
	case id.EntityTypeAnimal:
		if !s.Entity.OwnerID.IsNil() {
			keys = append(keys, "ctx:owner:"+s.Entity.OwnerID.String())
		}
	}
	return keys
}
