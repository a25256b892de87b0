package service

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

func TestNormalizePage(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name           string
		offset, amount int
		want           domain.Page
		wantErr        bool
	}{
		{name: "default amount", offset: 0, amount: 0, want: domain.Page{Offset: 0, Amount: 20}},
		{name: "explicit", offset: 5, amount: 10, want: domain.Page{Offset: 5, Amount: 10}},
		{name: "clamped", offset: 0, amount: 500, want: domain.Page{Offset: 0, Amount: 50}},
		{name: "negative offset", offset: -1, amount: 10, wantErr: true},
		{name: "negative amount", offset: 0, amount: -3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.query.NormalizePage(tt.offset, tt.amount)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPagination) {
					t.Fatalf("error = %v, want ErrInvalidPagination", err)
				}
				return
			}
			must(t, err)
			if got != tt.want {
				t.Fatalf("page = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	page := domain.Page{Amount: 10}

	tests := []struct {
		name           string
		rel            domain.Relationship
		viewer, target string
		page           domain.Page
		want           error
	}{
		{"unknown relationship", "frenemies", "a", "b", page, ErrUnknownRelationship},
		{"zero amount", domain.AllFollowers, "a", "", domain.Page{}, ErrInvalidPagination},
		{"negative offset", domain.AllFollowers, "a", "", domain.Page{Offset: -1, Amount: 1}, ErrInvalidPagination},
		{"missing target", domain.SharedMutuals, "a", "", page, ErrTargetRequired},
		{"self target", domain.CommonFollowers, "a", "a", page, ErrSelfReference},
		{"unknown viewer", domain.AllMutuals, "ghost", "", page, ErrNotFound},
		{"unknown target", domain.SpecificFollowing, "a", "ghost", page, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.query.Query(ctx, tt.rel, tt.viewer, tt.target, tt.page)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSingleAccountQueryIgnoresTarget(t *testing.T) {
	f := newFixture(t, "a", "b")
	must(t, f.coord.Follow(context.Background(), "b", "a"))

	if got := f.list(t, domain.AllFollowers, "a", "ghost"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("followers(a) = %v, want [b]", got)
	}
}

// Every follower B does not follow back, other than A, is either a common
// or a specific follower of A and B, never both.
func TestFollowerPartition(t *testing.T) {
	f := newFixture(t, "A", "B", "x1", "x2", "x3", "x4")
	ctx := context.Background()
	must(t, f.coord.Follow(ctx, "x1", "A"))
	must(t, f.coord.Follow(ctx, "x1", "B"))
	must(t, f.coord.Follow(ctx, "x2", "B"))
	must(t, f.coord.Follow(ctx, "x3", "A"))
	must(t, f.coord.Follow(ctx, "x4", "B"))
	must(t, f.coord.Follow(ctx, "x4", "A"))

	check := func(t *testing.T) {
		t.Helper()
		common := f.list(t, domain.CommonFollowers, "A", "B")
		specific := f.list(t, domain.SpecificFollowers, "A", "B")
		if !reflect.DeepEqual(common, []string{"x1", "x4"}) {
			t.Fatalf("common followers = %v, want [x1 x4]", common)
		}
		if !reflect.DeepEqual(specific, []string{"x2"}) {
			t.Fatalf("specific followers = %v, want [x2]", specific)
		}

		union := append(append([]string{}, common...), specific...)
		sort.Strings(union)
		if got := f.list(t, domain.AllFollowers, "B", ""); !reflect.DeepEqual(without(got, "A"), union) {
			t.Fatalf("followers(B) minus A = %v, want %v", without(got, "A"), union)
		}
	}

	t.Run("A does not follow B", check)
	must(t, f.coord.Follow(ctx, "A", "B"))
	t.Run("A follows B", check)
}

func TestCrossAccountScenario(t *testing.T) {
	f := newFixture(t, "U1", "U2", "U3", "U4")
	ctx := context.Background()
	for _, e := range [][2]string{
		{"U1", "U2"}, {"U2", "U1"},
		{"U2", "U3"}, {"U3", "U2"},
		{"U4", "U1"}, {"U4", "U3"},
		{"U1", "U4"},
	} {
		must(t, f.coord.Follow(ctx, e[0], e[1]))
	}

	tests := []struct {
		rel  domain.Relationship
		want []string
	}{
		{domain.SharedMutuals, []string{"U2"}},
		{domain.MutualsFollowingYou, []string{}},
		{domain.MutualsYouFollow, []string{}},
		{domain.UnacquaintedMutuals, []string{}},
		{domain.CommonFollowers, []string{"U4"}},
		{domain.SpecificFollowers, []string{}},
		{domain.CommonFollowing, []string{}},
		{domain.SpecificFollowing, []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.rel), func(t *testing.T) {
			if got := f.list(t, tt.rel, "U1", "U3"); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("%s(U1, U3) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}

	if got := f.list(t, domain.AllFollowersOnly, "U1", ""); !reflect.DeepEqual(got, []string{}) {
		t.Fatalf("followers_only(U1) = %v, want []", got)
	}
	if got := f.list(t, domain.AllFollowingOnly, "U4", ""); !reflect.DeepEqual(got, []string{"U3"}) {
		t.Fatalf("following_only(U4) = %v, want [U3]", got)
	}
}

func TestQueryPagination(t *testing.T) {
	users := []string{"hub", "f0", "f1", "f2", "f3", "f4"}
	f := newFixture(t, users...)
	ctx := context.Background()
	for _, id := range users[1:] {
		must(t, f.coord.Follow(ctx, id, "hub"))
	}

	var got []string
	for offset := 0; ; offset += 2 {
		page, err := f.query.Query(ctx, domain.AllFollowers, "hub", "", domain.Page{Offset: offset, Amount: 2})
		must(t, err)
		if len(page) == 0 {
			break
		}
		if len(page) > 2 {
			t.Fatalf("page at %d has %d items", offset, len(page))
		}
		for _, a := range page {
			got = append(got, a.ID)
		}
	}
	if !reflect.DeepEqual(got, users[1:]) {
		t.Fatalf("paged followers = %v, want %v", got, users[1:])
	}
}

func TestCountersRecordAccess(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	must(t, f.coord.Follow(ctx, "a", "b"))

	c, err := f.query.Counters(ctx, "b")
	must(t, err)
	if c.Followers != 1 {
		t.Fatalf("Followers = %d, want 1", c.Followers)
	}
	if !reflect.DeepEqual(f.tracker.accessed, []string{"b"}) {
		t.Fatalf("accessed = %v, want [b]", f.tracker.accessed)
	}

	if _, err := f.query.Counters(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Counters(ghost) error = %v, want ErrNotFound", err)
	}
	if !reflect.DeepEqual(f.tracker.accessed, []string{"b"}) {
		t.Fatalf("accessed after unknown account = %v, want [b]", f.tracker.accessed)
	}
}

func TestStatusAndBlockList(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	must(t, f.coord.Follow(ctx, "a", "b"))
	must(t, f.coord.Block(ctx, "c", "a"))
	must(t, f.coord.Block(ctx, "c", "b"))

	status, err := f.query.Status(ctx, "b", "a")
	must(t, err)
	if want := (domain.RelationStatus{FollowedBy: true}); *status != want {
		t.Fatalf("Status(b, a) = %+v, want %+v", *status, want)
	}
	status, err = f.query.Status(ctx, "a", "c")
	must(t, err)
	if want := (domain.RelationStatus{BlockedBy: true}); *status != want {
		t.Fatalf("Status(a, c) = %+v, want %+v", *status, want)
	}
	if _, err := f.query.Status(ctx, "a", "a"); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("Status(a, a) error = %v, want ErrSelfReference", err)
	}

	blocked, err := f.query.ListBlocked(ctx, "c", domain.Page{Amount: 10})
	must(t, err)
	if len(blocked) != 2 || blocked[0].ID != "a" || blocked[1].ID != "b" {
		t.Fatalf("ListBlocked(c) = %+v", blocked)
	}
	if _, err := f.query.ListBlocked(ctx, "ghost", domain.Page{Amount: 10}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ListBlocked(ghost) error = %v, want ErrNotFound", err)
	}
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
