package domain

import (
	"time"

	"gorm.io/gorm"
)

// UserModel is the users row. Accounts are created by the user service;
// this service only reads identity and maintains the three counters.
type UserModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey;index:idx_users_created_id,priority:2"`
	Username       string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	FollowerCount  int64     `gorm:"not null;default:0"`
	FollowingCount int64     `gorm:"not null;default:0"`
	MutualCount    int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"index:idx_users_created_id,priority:1"`
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (UserModel) TableName() string { return "users" }

// FollowModel is one directed follow edge. The primary key serves the
// "who does X follow" side; idx_follows_following serves "who follows X".
type FollowModel struct {
	FollowerID  string    `gorm:"type:varchar(36);primaryKey"`
	FollowingID string    `gorm:"type:varchar(36);primaryKey;index:idx_follows_following,priority:1"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (FollowModel) TableName() string { return "follows" }

// BlockModel is one directed block.
type BlockModel struct {
	BlockerID string    `gorm:"type:varchar(36);primaryKey"`
	BlockedID string    `gorm:"type:varchar(36);primaryKey;index:idx_blocks_blocked"`
	CreatedAt time.Time `gorm:"not null"`
}

func (BlockModel) TableName() string { return "blocks" }

// Models lists every table owned by the graph, in migration order.
func Models() []interface{} {
	return []interface{}{&UserModel{}, &FollowModel{}, &BlockModel{}}
}

// Account is the handle returned by relationship queries.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"create_time"`
}

// Counters are the denormalized relationship counts of one account.
type Counters struct {
	UserID    string `json:"user_id"`
	Followers int64  `json:"follower_count"`
	Following int64  `json:"following_count"`
	Mutuals   int64  `json:"mutual_count"`
}

// RelationStatus describes the edges between a viewer and one other account.
type RelationStatus struct {
	Following  bool `json:"following"`
	FollowedBy bool `json:"followed_by"`
	Blocking   bool `json:"blocking"`
	BlockedBy  bool `json:"blocked_by"`
}

// Mutual reports whether the two accounts follow each other.
func (s RelationStatus) Mutual() bool { return s.Following && s.FollowedBy }

// Page selects a window of an ordered result.
type Page struct {
	Offset int
	Amount int
}

// Endpoints names the querying account and, for cross-account queries, the
// target account.
type Endpoints struct {
	Viewer string
	Target string
}

// IDs returns the non-empty endpoint ids.
func (e Endpoints) IDs() []string {
	if e.Target == "" {
		return []string{e.Viewer}
	}
	return []string{e.Viewer, e.Target}
}

// Of resolves a subject to its account id.
func (e Endpoints) Of(s Subject) string {
	if s == Target {
		return e.Target
	}
	return e.Viewer
}
