package domain

import "testing"

type edgeSet map[[2]string]bool

func (s edgeSet) Follows(a, b string) bool { return s[[2]string{a, b}] }

func (s edgeSet) add(a, b string) { s[[2]string{a, b}] = true }

func TestParseRelationship(t *testing.T) {
	for _, r := range Relationships() {
		got, err := ParseRelationship(string(r))
		if err != nil {
			t.Fatalf("ParseRelationship(%q): %v", r, err)
		}
		if got != r {
			t.Fatalf("ParseRelationship(%q) = %q", r, got)
		}
	}
	if _, err := ParseRelationship("friends_of_friends"); err == nil {
		t.Fatal("expected error for unknown relationship")
	}
}

func TestRequiresTarget(t *testing.T) {
	cross := map[Relationship]bool{
		SharedMutuals: true, MutualsFollowingYou: true, MutualsYouFollow: true,
		UnacquaintedMutuals: true, CommonFollowers: true, SpecificFollowers: true,
		CommonFollowing: true, SpecificFollowing: true,
	}
	for _, r := range Relationships() {
		if got := r.RequiresTarget(); got != cross[r] {
			t.Fatalf("%s.RequiresTarget() = %v, want %v", r, got, cross[r])
		}
	}
}

// C follows A, B follows C, C follows B: C is a mutual of B who follows A
// without A following back.
func TestContainsMutualsFollowingYou(t *testing.T) {
	g := edgeSet{}
	g.add("C", "A")
	g.add("B", "C")
	g.add("C", "B")
	ends := Endpoints{Viewer: "A", Target: "B"}

	want := map[Relationship]bool{
		MutualsFollowingYou: true,
		SharedMutuals:       false,
		MutualsYouFollow:    false,
		UnacquaintedMutuals: false,
	}
	for r, w := range want {
		e, _ := r.Definition()
		if got := Contains(e, "C", ends, g); got != w {
			t.Fatalf("%s contains C = %v, want %v", r, got, w)
		}
	}
}

// Every mutual of the target falls into exactly one of the four mutual
// buckets, relative to the viewer.
func TestMutualBucketsPartition(t *testing.T) {
	buckets := []Relationship{SharedMutuals, MutualsFollowingYou, MutualsYouFollow, UnacquaintedMutuals}
	ends := Endpoints{Viewer: "A", Target: "B"}

	// Enumerate every combination of C<->A edges for a C that is B's mutual.
	for mask := 0; mask < 4; mask++ {
		g := edgeSet{}
		g.add("B", "C")
		g.add("C", "B")
		if mask&1 != 0 {
			g.add("C", "A")
		}
		if mask&2 != 0 {
			g.add("A", "C")
		}

		hits := 0
		for _, r := range buckets {
			e, _ := r.Definition()
			if Contains(e, "C", ends, g) {
				hits++
			}
		}
		if hits != 1 {
			t.Fatalf("mask %b: C in %d buckets, want 1", mask, hits)
		}
	}
}

func TestSingleAccountPartition(t *testing.T) {
	g := edgeSet{}
	g.add("X", "A")
	g.add("A", "X")
	g.add("Y", "A")
	g.add("A", "Z")
	ends := Endpoints{Viewer: "A"}

	cases := map[string]Relationship{"X": AllMutuals, "Y": AllFollowersOnly, "Z": AllFollowingOnly}
	for id, want := range cases {
		for _, r := range []Relationship{AllMutuals, AllFollowersOnly, AllFollowingOnly} {
			e, _ := r.Definition()
			if got := Contains(e, id, ends, g); got != (r == want) {
				t.Fatalf("%s contains %s = %v", r, id, got)
			}
		}
	}
}
