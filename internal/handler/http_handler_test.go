package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kurantoB/TwitterClone-sub000/internal/domain"
	"github.com/kurantoB/TwitterClone-sub000/internal/service"
	"github.com/kurantoB/TwitterClone-sub000/pkg/jwt"
	"github.com/kurantoB/TwitterClone-sub000/pkg/middleware"
)

const issuer = "auth-service"

type call struct {
	op, source, target string
}

type fakeCoordinator struct {
	calls []call
	err   error
}

func (f *fakeCoordinator) record(op, s, t string) error {
	f.calls = append(f.calls, call{op, s, t})
	return f.err
}

func (f *fakeCoordinator) Follow(_ context.Context, s, t string) error {
	return f.record("follow", s, t)
}

func (f *fakeCoordinator) Unfollow(_ context.Context, s, t string) error {
	return f.record("unfollow", s, t)
}

func (f *fakeCoordinator) Block(_ context.Context, s, t string) error {
	return f.record("block", s, t)
}

func (f *fakeCoordinator) Unblock(_ context.Context, s, t string) error {
	return f.record("unblock", s, t)
}

type queryCall struct {
	rel            domain.Relationship
	viewer, target string
	page           domain.Page
}

type fakeQueries struct {
	last     queryCall
	accounts []domain.Account
	err      error
}

func (f *fakeQueries) Query(_ context.Context, rel domain.Relationship, viewer, target string, page domain.Page) ([]domain.Account, error) {
	f.last = queryCall{rel, viewer, target, page}
	return f.accounts, f.err
}

func (f *fakeQueries) Counters(_ context.Context, userID string) (*domain.Counters, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Counters{UserID: userID, Followers: 3, Following: 2, Mutuals: 1}, nil
}

func (f *fakeQueries) Status(_ context.Context, viewer, other string) (*domain.RelationStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RelationStatus{Following: true, FollowedBy: true}, nil
}

func (f *fakeQueries) ListBlocked(_ context.Context, viewer string, page domain.Page) ([]domain.Account, error) {
	f.last = queryCall{viewer: viewer, page: page}
	return f.accounts, f.err
}

func (f *fakeQueries) NormalizePage(offset, amount int) (domain.Page, error) {
	if offset < 0 || amount < 0 {
		return domain.Page{}, service.ErrInvalidPagination
	}
	if amount == 0 {
		amount = 20
	}
	return domain.Page{Offset: offset, Amount: amount}, nil
}

type testServer struct {
	router  *gin.Engine
	coord   *fakeCoordinator
	queries *fakeQueries
	key     *rsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	s := &testServer{
		router:  gin.New(),
		coord:   &fakeCoordinator{},
		queries: &fakeQueries{},
		key:     key,
	}
	auth := middleware.NewAuthMiddleware(jwt.NewValidatorFromKey(&key.PublicKey, issuer))
	NewHandler(s.coord, s.queries, auth).RegisterRoutes(s.router)
	return s
}

func (s *testServer) do(t *testing.T, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		tok, err := jwt.Sign(s.key, issuer, userID, "name_"+userID, time.Minute)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func TestMutationRoutes(t *testing.T) {
	s := newTestServer(t)

	routes := []struct {
		method, path, op string
	}{
		{http.MethodPost, "/api/v1/users/bob/follow", "follow"},
		{http.MethodDelete, "/api/v1/users/bob/follow", "unfollow"},
		{http.MethodPost, "/api/v1/users/bob/block", "block"},
		{http.MethodDelete, "/api/v1/users/bob/block", "unblock"},
	}
	for _, r := range routes {
		w := s.do(t, r.method, r.path, "alice")
		if w.Code != http.StatusNoContent {
			t.Fatalf("%s %s: status %d, want 204", r.method, r.path, w.Code)
		}
		last := s.coord.calls[len(s.coord.calls)-1]
		if last != (call{r.op, "alice", "bob"}) {
			t.Fatalf("%s %s: call = %+v", r.method, r.path, last)
		}
	}
}

func TestMutationRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
	if len(s.coord.calls) != 0 {
		t.Fatalf("coordinator called without auth: %+v", s.coord.calls)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		code     string
		retryHdr bool
	}{
		{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND", false},
		{service.ErrSelfReference, http.StatusBadRequest, "BAD_REQUEST", false},
		{service.ErrBlocked, http.StatusForbidden, "FORBIDDEN", false},
		{fmt.Errorf("%w (3 attempts)", service.ErrTryAgain), http.StatusServiceUnavailable, "TRY_AGAIN", true},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			s := newTestServer(t)
			s.coord.err = tt.err

			w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice")
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d", w.Code, tt.status)
			}
			if env := decode(t, w); env.Success || env.Error == nil || env.Error.Code != tt.code {
				t.Fatalf("body = %s", w.Body.String())
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.retryHdr {
				t.Fatalf("Retry-After present = %v, want %v", got, tt.retryHdr)
			}
		})
	}
}

func TestListRelationshipSubjects(t *testing.T) {
	s := newTestServer(t)
	s.queries.accounts = []domain.Account{{ID: "carol", Username: "carol"}}

	w := s.do(t, http.MethodGet, "/api/v1/users/bob/relationships/shared_mutuals?offset=2&amount=5", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	want := queryCall{domain.SharedMutuals, "alice", "bob", domain.Page{Offset: 2, Amount: 5}}
	if s.queries.last != want {
		t.Fatalf("query = %+v, want %+v", s.queries.last, want)
	}

	var page struct {
		Items  []domain.Account `json:"items"`
		Offset int              `json:"offset"`
		Amount int              `json:"amount"`
		Count  int              `json:"count"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Count != 1 || page.Offset != 2 || page.Amount != 5 || page.Items[0].ID != "carol" {
		t.Fatalf("page = %+v", page)
	}

	w = s.do(t, http.MethodGet, "/api/v1/users/bob/relationships/followers", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	want = queryCall{domain.AllFollowers, "bob", "", domain.Page{Offset: 0, Amount: 20}}
	if s.queries.last != want {
		t.Fatalf("query = %+v, want %+v", s.queries.last, want)
	}
}

func TestListMyRelationship(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/me/relationships/common_following?target_id=bob&amount=7", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	want := queryCall{domain.CommonFollowing, "alice", "bob", domain.Page{Amount: 7}}
	if s.queries.last != want {
		t.Fatalf("query = %+v, want %+v", s.queries.last, want)
	}

	s.queries.err = service.ErrTargetRequired
	w = s.do(t, http.MethodGet, "/api/v1/me/relationships/common_following", "alice")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestListRelationshipBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/users/bob/relationships/frenemies", http.StatusNotFound},
		{"/api/v1/users/bob/relationships/mutuals?offset=-1", http.StatusBadRequest},
		{"/api/v1/users/bob/relationships/mutuals?amount=ten", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := s.do(t, http.MethodGet, tt.path, "alice"); w.Code != tt.status {
			t.Fatalf("GET %s: status %d, want %d", tt.path, w.Code, tt.status)
		}
	}
}

func TestCountersArePublic(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/users/bob/counters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var c domain.Counters
	if err := json.Unmarshal(decode(t, w).Data, &c); err != nil {
		t.Fatalf("decode counters: %v", err)
	}
	if c.UserID != "bob" || c.Followers != 3 || c.Mutuals != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/users/bob/status", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var got map[string]bool
	if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !got["mutual"] || got["blocking"] {
		t.Fatalf("status = %v", got)
	}
}

func TestListBlocked(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/me/blocks?amount=3", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if want := (queryCall{viewer: "alice", page: domain.Page{Amount: 3}}); s.queries.last != want {
		t.Fatalf("call = %+v, want %+v", s.queries.last, want)
	}
}
