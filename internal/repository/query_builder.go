package repository

import (
	"fmt"
	"strings"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
)

// relationQuery is a WHERE fragment over the users table and its bind
// variables, in placeholder order.
type relationQuery struct {
	sql  strings.Builder
	args []interface{}
	ends domain.Endpoints
	n    int
}

// compileRelation turns a set expression into semi-joins (EXISTS) and
// anti-joins (NOT EXISTS) against follows, correlated on users.id.
func compileRelation(e domain.Expr, ends domain.Endpoints) (string, []interface{}) {
	q := &relationQuery{ends: ends}
	q.write(e)
	return q.sql.String(), q.args
}

func (q *relationQuery) write(e domain.Expr) {
	switch n := e.(type) {
	case domain.Followers:
		q.edge("follower_id", "following_id", n.Of)
	case domain.Following:
		q.edge("following_id", "follower_id", n.Of)
	case domain.Universe:
		q.sql.WriteString("1 = 1")
	case domain.Intersect:
		q.binary(n.Left, " AND ", n.Right)
	case domain.Difference:
		if _, ok := n.Left.(domain.Universe); ok {
			q.sql.WriteString("NOT ")
			q.write(n.Right)
			return
		}
		q.binary(n.Left, " AND NOT ", n.Right)
	default:
		panic(fmt.Sprintf("repository: unknown expression %T", e))
	}
}

// edge writes EXISTS over follows where the candidate sits in column own
// and the subject in column other.
func (q *relationQuery) edge(own, other string, s domain.Subject) {
	q.n++
	alias := fmt.Sprintf("f%d", q.n)
	fmt.Fprintf(&q.sql,
		"EXISTS (SELECT 1 FROM follows %[1]s WHERE %[1]s.%[2]s = users.id AND %[1]s.%[3]s = ?)",
		alias, own, other)
	q.args = append(q.args, q.ends.Of(s))
}

func (q *relationQuery) binary(l domain.Expr, op string, r domain.Expr) {
	q.sql.WriteByte('(')
	q.write(l)
	q.sql.WriteString(op)
	q.write(r)
	q.sql.WriteByte(')')
}
