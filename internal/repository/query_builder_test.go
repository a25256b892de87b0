package repository

import (
	"strings"
	"testing"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

func TestCompileRelationMutuals(t *testing.T) {
	sql, args := compileRelation(domain.Mutuals(domain.Viewer), domain.Endpoints{Viewer: "a"})

	want := "(EXISTS (SELECT 1 FROM follows f1 WHERE f1.follower_id = users.id AND f1.following_id = ?)" +
		" AND EXISTS (SELECT 1 FROM follows f2 WHERE f2.following_id = users.id AND f2.follower_id = ?))"
	if sql != want {
		t.Fatalf("sql = %s\nwant  %s", sql, want)
	}
	if len(args) != 2 || args[0] != "a" || args[1] != "a" {
		t.Fatalf("args = %v", args)
	}
}

func TestCompileRelationArgsFollowPlaceholders(t *testing.T) {
	for _, r := range domain.Relationships() {
		expr, _ := r.Definition()
		sql, args := compileRelation(expr, domain.Endpoints{Viewer: "a", Target: "b"})
		if got := strings.Count(sql, "?"); got != len(args) {
			t.Fatalf("%s: %d placeholders, %d args", r, got, len(args))
		}
	}
}

func TestCompileRelationUniverseDifference(t *testing.T) {
	expr := domain.Difference{Left: domain.Universe{}, Right: domain.Followers{Of: domain.Target}}
	sql, args := compileRelation(expr, domain.Endpoints{Viewer: "a", Target: "b"})

	if !strings.HasPrefix(sql, "NOT EXISTS") {
		t.Fatalf("sql = %s", sql)
	}
	if len(args) != 1 || args[0] != "b" {
		t.Fatalf("args = %v", args)
	}
}
