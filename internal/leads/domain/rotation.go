package domain

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// AssignableRole is the member role that takes part in lead rotation.
const AssignableRole = "member"

// Member is a user attached to a pipeline.
type Member struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Role      string
	IsActive  bool
}

// IsEligible reports whether m may receive leads automatically.
func (m Member) IsEligible() bool {
	return m.IsActive && strings.EqualFold(m.Role, AssignableRole)
}

// EligibleMembers filters members down to the rotation and orders them by
// identifier ascending. The input slice is not modified.
func EligibleMembers(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.IsEligible() {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Member) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Pick is the member chosen for the next lead and its zero-based position in
// the rotation.
type Pick struct {
	Member   Member
	Position int
}

// NextMember selects the member after cursor in the sorted rotation. A nil
// cursor selects the first member, as does a cursor that is no longer in the
// rotation. ok is false only when the rotation is empty.
func NextMember(rotation []Member, cursor *uuid.UUID) (Pick, bool) {
	if len(rotation) == 0 {
		return Pick{}, false
	}
	if cursor == nil {
		return Pick{Member: rotation[0], Position: 0}, true
	}

	idx := slices.IndexFunc(rotation, func(m Member) bool { return m.ID == *cursor })
	if idx < 0 {
		return Pick{Member: rotation[0], Position: 0}, true
	}

	next := (idx + 1) % len(rotation)
	return Pick{Member: rotation[next], Position: next}, true
}
