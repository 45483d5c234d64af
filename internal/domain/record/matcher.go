package record

import (
	"strings"
)

// Matcher decides whether a draft person denotes an already-known person.
// It returns the matching stored record, or nil when the draft is a
// previously-unseen person. Implementations must be deterministic: at most
// one record is returned, chosen by rule precedence.
//
// The interface exists so the linear scan below can later be swapped for an
// indexed lookup (registration number first, then name+village) without
// touching the merge engine.
type Matcher interface {
	Match(draft *Person, existing []*Person) *Person
}

// LinearMatcher scans every stored person per draft. O(existing × new) is
// fine at clinic-scale imports.
type LinearMatcher struct{}

func NewLinearMatcher() *LinearMatcher { return &LinearMatcher{} }

// Match applies the identity rules in order, first hit wins:
//
//  1. strong: both registration numbers non-empty and equal after
//     normalization;
//  2. weak: names non-empty and equal, villages equal, and both ages
//     known and equal.
//
// Two records with unknown ages never weak-match: a missing age is an
// unknown, not a shared value.
func (m *LinearMatcher) Match(draft *Person, existing []*Person) *Person {
	draftReg := normalizeReg(draft.RegistrationNumber())
	draftName := normalizeText(strVal(draft.Name))
	draftVillage := normalizeText(strVal(draft.Address.Village))

	for _, candidate := range existing {
		if draftReg != "" {
			if reg := normalizeReg(candidate.RegistrationNumber()); reg != "" && reg == draftReg {
				return candidate
			}
		}

		if draftName == "" {
			continue
		}
		if normalizeText(strVal(candidate.Name)) != draftName {
			continue
		}
		if normalizeText(strVal(candidate.Address.Village)) != draftVillage {
			continue
		}
		if draft.Age == nil || candidate.Age == nil {
			continue
		}
		if *draft.Age == *candidate.Age {
			return candidate
		}
	}
	return nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeReg(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
