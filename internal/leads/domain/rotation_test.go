package domain

import (
	"testing"

	"github.com/google/uuid"
)

var (
	memberA = uuid.MustParse("0000000a-0000-4000-8000-000000000000")
	memberB = uuid.MustParse("0000000b-0000-4000-8000-000000000000")
	memberC = uuid.MustParse("0000000c-0000-4000-8000-000000000000")
)

func member(id uuid.UUID) Member {
	return Member{ID: id, Role: AssignableRole, IsActive: true}
}

func TestEligibleMembersFiltersAndSorts(t *testing.T) {
	in := []Member{
		member(memberC),
		{ID: uuid.New(), Role: AssignableRole, IsActive: false},
		{ID: uuid.New(), Role: "admin", IsActive: true},
		member(memberA),
		{ID: memberB, Role: "Member", IsActive: true},
	}

	got := EligibleMembers(in)

	want := []uuid.UUID{memberA, memberB, memberC}
	if len(got) != len(want) {
		t.Fatalf("expected %d eligible members, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, want[i])
		}
	}
	if in[0].ID != memberC {
		t.Fatal("input slice was reordered")
	}
}

func TestNextMemberRotatesFromNullCursor(t *testing.T) {
	rotation := EligibleMembers([]Member{member(memberB), member(memberC), member(memberA)})

	var cursor *uuid.UUID
	var seq []uuid.UUID
	for i := 0; i < 4; i++ {
		pick, ok := NextMember(rotation, cursor)
		if !ok {
			t.Fatal("expected a pick")
		}
		id := pick.Member.ID
		cursor = &id
		seq = append(seq, id)
	}

	want := []uuid.UUID{memberA, memberB, memberC, memberA}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("call %d: got %s, want %s", i+1, seq[i], want[i])
		}
	}
}

func TestNextMemberRestartsWhenCursorLeft(t *testing.T) {
	rotation := EligibleMembers([]Member{
		member(memberA),
		{ID: memberB, Role: AssignableRole, IsActive: false},
		member(memberC),
	})

	pick, ok := NextMember(rotation, &memberB)
	if !ok || pick.Member.ID != memberA || pick.Position != 0 {
		t.Fatalf("expected restart at A, got %+v", pick)
	}
}

func TestNextMemberWrapsAround(t *testing.T) {
	rotation := EligibleMembers([]Member{member(memberA), member(memberB), member(memberC)})
	pick, _ := NextMember(rotation, &memberC)
	if pick.Member.ID != memberA || pick.Position != 0 {
		t.Fatalf("expected wrap to A, got %+v", pick)
	}
}

func TestNextMemberEmptyRotation(t *testing.T) {
	if _, ok := NextMember(nil, nil); ok {
		t.Fatal("expected no pick for an empty rotation")
	}
}

func TestNextMemberIsFair(t *testing.T) {
	ids := make([]Member, 7)
	for i := range ids {
		ids[i] = member(uuid.New())
	}
	rotation := EligibleMembers(ids)

	for _, n := range []int{1, 6, 7, 8, 50, 71} {
		counts := map[uuid.UUID]int{}
		start := rotation[3].ID
		cursor := &start
		for i := 0; i < n; i++ {
			pick, _ := NextMember(rotation, cursor)
			id := pick.Member.ID
			cursor = &id
			counts[id]++
		}

		lo, hi := n/len(rotation), (n+len(rotation)-1)/len(rotation)
		for _, m := range rotation {
			if c := counts[m.ID]; c < lo || c > hi {
				t.Fatalf("n=%d: member %s picked %d times, want between %d and %d", n, m.ID, c, lo, hi)
			}
		}
	}
}
