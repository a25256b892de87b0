package domain

import "fmt"

// Relationship names a listing over the follow graph.
type Relationship string

// Cross-account relationships: the viewer looking at a target's network.
const (
	SharedMutuals       Relationship = "shared_mutuals"
	MutualsFollowingYou Relationship = "mutuals_following_you"
	MutualsYouFollow    Relationship = "mutuals_you_follow"
	UnacquaintedMutuals Relationship = "unacquainted_mutuals"
	CommonFollowers     Relationship = "common_followers"
	SpecificFollowers   Relationship = "specific_followers"
	CommonFollowing     Relationship = "common_following"
	SpecificFollowing   Relationship = "specific_following"
)

// Single-account relationships.
const (
	AllMutuals       Relationship = "mutuals"
	AllFollowersOnly Relationship = "followers_only"
	AllFollowingOnly Relationship = "following_only"
	AllFollowers     Relationship = "followers"
	AllFollowing     Relationship = "following"
)

// Subject is one of the two accounts a relationship is evaluated against.
type Subject int

const (
	Viewer Subject = iota
	Target
)

func (s Subject) String() string {
	if s == Target {
		return "target"
	}
	return "viewer"
}

// Expr is a set expression over accounts.
type Expr interface {
	isExpr()
}

// Followers is the set of accounts following Of.
type Followers struct{ Of Subject }

// Following is the set of accounts Of follows.
type Following struct{ Of Subject }

// Universe is every account.
type Universe struct{}

// Intersect is Left ∩ Right.
type Intersect struct{ Left, Right Expr }

// Difference is Left \ Right.
type Difference struct{ Left, Right Expr }

func (Followers) isExpr()  {}
func (Following) isExpr()  {}
func (Universe) isExpr()   {}
func (Intersect) isExpr()  {}
func (Difference) isExpr() {}

// Mutuals is Followers(s) ∩ Following(s).
func Mutuals(s Subject) Expr {
	return Intersect{Followers{s}, Following{s}}
}

func and(l, r Expr) Expr   { return Intersect{l, r} }
func minus(l, r Expr) Expr { return Difference{l, r} }

var (
	followersOnlyOfTarget = minus(Followers{Target}, Following{Target})
	followingOnlyOfTarget = minus(Following{Target}, Followers{Target})
)

var definitions = map[Relationship]Expr{
	SharedMutuals:       and(Mutuals(Viewer), Mutuals(Target)),
	MutualsFollowingYou: and(minus(Followers{Viewer}, Following{Viewer}), Mutuals(Target)),
	MutualsYouFollow:    and(minus(Following{Viewer}, Followers{Viewer}), Mutuals(Target)),
	UnacquaintedMutuals: and(minus(minus(Universe{}, Followers{Viewer}), Following{Viewer}), Mutuals(Target)),
	CommonFollowers:     and(Followers{Viewer}, followersOnlyOfTarget),
	SpecificFollowers:   and(minus(Universe{}, Followers{Viewer}), followersOnlyOfTarget),
	CommonFollowing:     and(Following{Viewer}, followingOnlyOfTarget),
	SpecificFollowing:   and(minus(Universe{}, Following{Viewer}), followingOnlyOfTarget),

	AllMutuals:       Mutuals(Viewer),
	AllFollowersOnly: minus(Followers{Viewer}, Mutuals(Viewer)),
	AllFollowingOnly: minus(Following{Viewer}, Mutuals(Viewer)),
	AllFollowers:     Followers{Viewer},
	AllFollowing:     Following{Viewer},
}

// Relationships lists every known relationship in a stable order.
func Relationships() []Relationship {
	return []Relationship{
		SharedMutuals, MutualsFollowingYou, MutualsYouFollow, UnacquaintedMutuals,
		CommonFollowers, SpecificFollowers, CommonFollowing, SpecificFollowing,
		AllMutuals, AllFollowersOnly, AllFollowingOnly, AllFollowers, AllFollowing,
	}
}

// ParseRelationship validates a relationship name.
func ParseRelationship(s string) (Relationship, error) {
	r := Relationship(s)
	if _, ok := definitions[r]; !ok {
		return "", fmt.Errorf("unknown relationship %q", s)
	}
	return r, nil
}

// Definition returns the set expression of r.
func (r Relationship) Definition() (Expr, bool) {
	e, ok := definitions[r]
	return e, ok
}

// RequiresTarget reports whether r is evaluated against a second account.
func (r Relationship) RequiresTarget() bool {
	e, ok := definitions[r]
	return ok && references(e, Target)
}

func references(e Expr, s Subject) bool {
	switch n := e.(type) {
	case Followers:
		return n.Of == s
	case Following:
		return n.Of == s
	case Intersect:
		return references(n.Left, s) || references(n.Right, s)
	case Difference:
		return references(n.Left, s) || references(n.Right, s)
	default:
		return false
	}
}

// FollowGraph answers edge membership for Contains.
type FollowGraph interface {
	Follows(follower, following string) bool
}

// Contains evaluates e for a single candidate account in memory.
func Contains(e Expr, candidate string, ends Endpoints, g FollowGraph) bool {
	switch n := e.(type) {
	case Followers:
		return g.Follows(candidate, ends.Of(n.Of))
	case Following:
		return g.Follows(ends.Of(n.Of), candidate)
	case Universe:
		return true
	case Intersect:
		return Contains(n.Left, candidate, ends, g) && Contains(n.Right, candidate, ends, g)
	case Difference:
		return Contains(n.Left, candidate, ends, g) && !Contains(n.Right, candidate, ends, g)
	default:
		panic(fmt.Sprintf("domain: unknown expression %T", e))
	}
}
