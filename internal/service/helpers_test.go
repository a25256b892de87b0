package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kurantoB/TwitterClone-sub000/internal/config"
	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/internal/repository"
	"github.com/kurantoB/TwitterClone-sub000/pkg/database"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var testGraphConfig = config.GraphConfig{
	RetryAttempts:        3,
	RetryInitialInterval: time.Millisecond,
	RetryMaxInterval:     2 * time.Millisecond,
	TxTimeout:            5 * time.Second,
	DefaultPageSize:      20,
	MaxPageSize:          50,
}

// testPoolSize lets concurrent tests contend for the sqlite write lock the
// same way service instances would.
const testPoolSize = 8

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       database.DriverSQLite,
		FilePath:     filepath.Join(t.TempDir(), "graph.db"),
		MaxOpenConns: testPoolSize,
		LogLevel:     "silent",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for i, id := range ids {
		u := domain.UserModel{ID: id, Username: "name_" + id, CreatedAt: epoch.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
	}
}

type fakeTracker struct {
	mu       sync.Mutex
	dirty    []string
	accessed []string
}

func (f *fakeTracker) MarkDirty(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty = append(f.dirty, ids...)
	return nil
}

func (f *fakeTracker) RecordAccess(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessed = append(f.accessed, id)
	return nil
}

type published struct {
	eventType, actor, subject string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) RelationshipChanged(_ context.Context, eventType, actor, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{eventType, actor, subject})
	return nil
}

// conflictingStore fails the first n transactions with a serialization error.
type conflictingStore struct {
	repository.GraphStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (s *conflictingStore) Transact(ctx context.Context, fn func(repository.GraphTx) error) error {
	s.mu.Lock()
	s.attempts++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: injected", repository.ErrSerialization)
	}
	return s.GraphStore.Transact(ctx, fn)
}

type fixture struct {
	db        *gorm.DB
	graph     *repository.GormGraphRepository
	tracker   *fakeTracker
	publisher *fakePublisher
	coord     FollowCoordinator
	query     RelationshipQueryEngine
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	db := openTestDB(t)
	seedUsers(t, db, users...)
	f := &fixture{
		db:        db,
		graph:     repository.NewGormGraphRepository(db),
		tracker:   &fakeTracker{},
		publisher: &fakePublisher{},
	}
	f.coord = NewFollowCoordinator(f.graph, f.tracker, f.publisher, testGraphConfig)
	f.query = NewRelationshipQueryEngine(f.graph, repository.NewGormBlockRepository(db), f.tracker, testGraphConfig)
	return f
}

func (f *fixture) counters(t *testing.T, id string) domain.Counters {
	t.Helper()
	c, err := f.graph.GetCounters(context.Background(), id)
	if err != nil {
		t.Fatalf("GetCounters(%s): %v", id, err)
	}
	return *c
}

func (f *fixture) list(t *testing.T, rel domain.Relationship, viewer, target string) []string {
	t.Helper()
	accounts, err := f.query.Query(context.Background(), rel, viewer, target, domain.Page{Amount: 50})
	if err != nil {
		t.Fatalf("Query(%s, %s, %s): %v", rel, viewer, target, err)
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
