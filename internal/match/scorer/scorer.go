// Package scorer computes weighted similarity scores between same-type
// entity pairs. Each entity type has a fixed pipeline of signal
// evaluators; weights come from the policy snapshot, never from
// compile-time constants.
package scorer

import (
	"fmt"

	"unify/internal/match/models"
	"unify/internal/match/policy"
	id "unify/pkg/domain"
	dErrors "unify/pkg/domain-errors"
)

// DeterministicScore is the short-circuit score for pairs with an
// authoritative shared signal: a shared normalized identifier, or a
// shared permanent tag for animals. It sits above every shipped
// auto-merge threshold and ignores all other signals by design of the
// short-circuit, not of the weighting.
const DeterministicScore = 0.98

// Result is a score in [0, 1] plus the named reasons that produced it.
type Result struct {
	Score         float64
	Reasons       []string
	Deterministic bool
}

// signalResult is one evaluator's verdict. Value is a fraction of the
// signal's weight in [-1, 1]; Skip means the data needed to evaluate is
// absent on at least one side, which removes the weight from the
// denominator instead of counting as a miss.
type signalResult struct {
	Value   float64
	Reasons []string
	Skip    bool
}

type signal struct {
	Name string
	Eval func(a, b *models.EntitySignals) signalResult
}

// Score evaluates the pair against its type's signal pipeline.
func Score(a, b *models.EntitySignals, snap policy.Snapshot) (Result, error) {
	if a.Entity.Type != b.Entity.Type {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "cannot score entities of different types")
	}

	if reason, ok := deterministicMatch(a, b); ok {
		return Result{Score: DeterministicScore, Reasons: []string{reason}, Deterministic: true}, nil
	}

	var num, denom float64
	var reasons []string
	for _, sig := range pipelineFor(a.Entity.Type) {
		res := sig.Eval(a, b)
		if res.Skip {
			continue
		}
		w := snap.Weight(sig.Name)
		if w == 0 {
			continue
		}
		num += w * res.Value
		denom += w
		reasons = append(reasons, res.Reasons...)
	}
	if denom == 0 {
		return Result{Reasons: []string{"no_signals"}}, nil
	}

	score := num / denom
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Result{Score: score, Reasons: reasons}, nil
}

// deterministicMatch checks the authoritative signals: a shared
// normalized identifier for any type, a shared permanent tag for animals.
func deterministicMatch(a, b *models.EntitySignals) (string, bool) {
	if kind, ok := a.SharedIdentifier(b); ok {
		return fmt.Sprintf("%s_match", kind), true
	}
	if a.Entity.Type == id.EntityTypeAnimal && a.Entity.Tag != "" && a.Entity.Tag == b.Entity.Tag {
		return "tag_match", true
	}
	return "", false
}

func pipelineFor(t id.EntityType) []signal {
	switch t {
	case id.EntityTypeAnimal:
		return animalPipeline
	case id.EntityTypePlace:
		return placePipeline
	default:
		return personPipeline
	}
}

var personPipeline = []signal{
	{Name: "name", Eval: nameSignal},
	{Name: "phonetic", Eval: phoneticSignal},
	{Name: "place", Eval: sharedPlaceSignal},
}

var animalPipeline = []signal{
	{Name: "name", Eval: nameSignal},
	{Name: "phonetic", Eval: phoneticSignal},
	{Name: "owner", Eval: sharedOwnerSignal},
	{Name: "sex", Eval: sexSignal},
}

var placePipeline = []signal{
	{Name: "name", Eval: nameSignal},
	{Name: "phonetic", Eval: phoneticSignal},
	{Name: "address", Eval: addressSignal},
}

func nameSignal(a, b *models.EntitySignals) signalResult {
	if a.Entity.Name == "" || b.Entity.Name == "" {
		return signalResult{Skip: true}
	}
	tri := trigramSimilarity(a.Entity.Name, b.Entity.Name)
	lev := levenshteinSimilarity(a.Entity.Name, b.Entity.Name)
	sim := 0.5*tri + 0.5*lev
	return signalResult{
		Value:   sim,
		Reasons: []string{fmt.Sprintf("name_trigram:%.2f", tri)},
	}
}

// phoneticSignal skips entirely when the backend is disabled, so its
// weight redistributes across the remaining signals instead of dragging
// every score down.
func phoneticSignal(a, b *models.EntitySignals) signalResult {
	if !a.Codes.Enabled || !b.Codes.Enabled {
		return signalResult{Skip: true}
	}
	if a.Codes.Last == "" || b.Codes.Last == "" {
		return signalResult{Skip: true}
	}
	if a.Codes.Last == b.Codes.Last {
		if a.Codes.First != "" && a.Codes.First == b.Codes.First {
			return signalResult{Value: 1, Reasons: []string{"phonetic_match"}}
		}
		return signalResult{Value: 0.7, Reasons: []string{"phonetic_last_match"}}
	}
	return signalResult{Value: 0}
}

func sharedPlaceSignal(a, b *models.EntitySignals) signalResult {
	if a.Entity.PlaceID.IsNil() || b.Entity.PlaceID.IsNil() {
		return signalResult{Skip: true}
	}
	if a.Entity.PlaceID == b.Entity.PlaceID {
		return signalResult{Value: 1, Reasons: []string{"shared_address"}}
	}
	return signalResult{Value: 0}
}

func sharedOwnerSignal(a, b *models.EntitySignals) signalResult {
	if a.Entity.OwnerID.IsNil() || b.Entity.OwnerID.IsNil() {
		return signalResult{Skip: true}
	}
	if a.Entity.OwnerID == b.Entity.OwnerID {
		return signalResult{Value: 1, Reasons: []string{"shared_owner"}}
	}
	return signalResult{Value: 0}
}

// sexSignal is the one negative signal: an animal's recorded sex never
// changes, so a mismatch is strong evidence of two different animals.
// A match is only weak evidence and contributes half weight.
func sexSignal(a, b *models.EntitySignals) signalResult {
	if a.Entity.Sex == "" || b.Entity.Sex == "" {
		return signalResult{Skip: true}
	}
	if a.Entity.Sex == b.Entity.Sex {
		return signalResult{Value: 0.5, Reasons: []string{"sex_match"}}
	}
	return signalResult{Value: -1, Reasons: []string{"sex_mismatch"}}
}

func addressSignal(a, b *models.EntitySignals) signalResult {
	if a.Entity.Address == "" || b.Entity.Address == "" {
		return signalResult{Skip: true}
	}
	tri := trigramSimilarity(a.Entity.Address, b.Entity.Address)
	return signalResult{
		Value:   tri,
		Reasons: []string{fmt.Sprintf("address_trigram:%.2f", tri)},
	}
}
