package repository

import (
	"context"
	"database/sql"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/pkg/database"
)

// counterAssignments derives every counter column from the follows table.
// Counters are never adjusted by deltas.
func counterAssignments() map[string]interface{} {
	return map[string]interface{}{
		"follower_count":  gorm.Expr("(SELECT COUNT(*) FROM follows fc WHERE fc.following_id = users.id)"),
		"following_count": gorm.Expr("(SELECT COUNT(*) FROM follows fc WHERE fc.follower_id = users.id)"),
		"mutual_count": gorm.Expr("(SELECT COUNT(*) FROM follows fi JOIN follows fo" +
			" ON fo.follower_id = fi.following_id AND fo.following_id = fi.follower_id" +
			" WHERE fi.following_id = users.id)"),
	}
}

// GormGraphRepository implements GraphStore using GORM.
type GormGraphRepository struct {
	db        *gorm.DB
	txOptions *sql.TxOptions
	lockRows  bool
}

// NewGormGraphRepository creates a GORM-backed graph store. Row locks are
// skipped on sqlite, which serializes writers on the database lock instead.
func NewGormGraphRepository(db *gorm.DB) *GormGraphRepository {
	return &GormGraphRepository{
		db:        db,
		txOptions: &sql.TxOptions{Isolation: sql.LevelSerializable},
		lockRows:  !database.IsSQLite(db),
	}
}

// Transact implements GraphStore.
func (r *GormGraphRepository) Transact(ctx context.Context, fn func(tx GraphTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormGraphTx{db: tx, lockRows: r.lockRows})
	}, r.txOptions)
	return classify(err)
}

// CountUsers implements GraphStore.
func (r *GormGraphRepository) CountUsers(ctx context.Context, ids ...string) (int, error) {
	ids = sortedUnique(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id IN ?", ids).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// GetCounters implements GraphStore.
func (r *GormGraphRepository) GetCounters(ctx context.Context, userID string) (*domain.Counters, error) {
	var m domain.UserModel
	err := r.db.WithContext(ctx).
		Select("id", "follower_count", "following_count", "mutual_count").
		Where("id = ?", userID).
		First(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &domain.Counters{
		UserID:    m.ID,
		Followers: m.FollowerCount,
		Following: m.FollowingCount,
		Mutuals:   m.MutualCount,
	}, nil
}

type relationStatusRow struct {
	IsFollowing  int64
	IsFollowedBy int64
	IsBlocking   int64
	IsBlockedBy  int64
}

// RelationStatus implements GraphStore.
func (r *GormGraphRepository) RelationStatus(ctx context.Context, viewerID, otherID string) (*domain.RelationStatus, error) {
	var row relationStatusRow
	err := r.db.WithContext(ctx).Raw(`SELECT
		(SELECT COUNT(*) FROM follows WHERE follower_id = @viewer AND following_id = @other) AS is_following,
		(SELECT COUNT(*) FROM follows WHERE follower_id = @other AND following_id = @viewer) AS is_followed_by,
		(SELECT COUNT(*) FROM blocks WHERE blocker_id = @viewer AND blocked_id = @other) AS is_blocking,
		(SELECT COUNT(*) FROM blocks WHERE blocker_id = @other AND blocked_id = @viewer) AS is_blocked_by`,
		sql.Named("viewer", viewerID), sql.Named("other", otherID),
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &domain.RelationStatus{
		Following:  row.IsFollowing > 0,
		FollowedBy: row.IsFollowedBy > 0,
		Blocking:   row.IsBlocking > 0,
		BlockedBy:  row.IsBlockedBy > 0,
	}, nil
}

// ListRelationship implements GraphStore. The whole set expression is
// evaluated by the database; only the requested page is returned.
func (r *GormGraphRepository) ListRelationship(ctx context.Context, expr domain.Expr, ends domain.Endpoints, page domain.Page) ([]domain.Account, error) {
	cond, args := compileRelation(expr, ends)

	var rows []domain.UserModel
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Select("users.id", "users.username", "users.created_at").
		Where(cond, args...).
		Where("users.id NOT IN ?", ends.IDs()).
		Order("users.created_at ASC").
		Order("users.id ASC").
		Offset(page.Offset).
		Limit(page.Amount).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

// RecomputeCounters implements GraphStore.
func (r *GormGraphRepository) RecomputeCounters(ctx context.Context, ids ...string) error {
	return r.Transact(ctx, func(tx GraphTx) error {
		return tx.RecomputeCounters(ids...)
	})
}

// gormGraphTx implements GraphTx on an open transaction.
type gormGraphTx struct {
	db       *gorm.DB
	lockRows bool
}

func (t *gormGraphTx) LockUsers(ids ...string) error {
	ids = sortedUnique(ids)

	q := t.db.Model(&domain.UserModel{}).Where("id IN ?", ids).Order("id")
	if t.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var found []string
	if err := q.Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) != len(ids) {
		return ErrUserNotFound
	}
	return nil
}

func (t *gormGraphTx) FollowExists(followerID, followingID string) (bool, error) {
	var count int64
	err := t.db.Model(&domain.FollowModel{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *gormGraphTx) InsertFollow(followerID, followingID string) error {
	return t.db.Create(&domain.FollowModel{
		FollowerID:  followerID,
		FollowingID: followingID,
	}).Error
}

func (t *gormGraphTx) DeleteFollow(followerID, followingID string) (bool, error) {
	result := t.db.
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&domain.FollowModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (t *gormGraphTx) RecomputeCounters(ids ...string) error {
	ids = sortedUnique(ids)
	if len(ids) == 0 {
		return nil
	}
	return t.db.Model(&domain.UserModel{}).
		Where("id IN ?", ids).
		Updates(counterAssignments()).Error
}

func toAccounts(rows []domain.UserModel) []domain.Account {
	out := make([]domain.Account, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.Account{ID: m.ID, Username: m.Username, CreatedAt: m.CreatedAt})
	}
	return out
}

func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Ensure interfaces are satisfied at compile time.
var (
	_ GraphStore = (*GormGraphRepository)(nil)
	_ GraphTx    = (*gormGraphTx)(nil)
)
