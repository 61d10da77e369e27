package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"github.com/xela07ax/unihub-backend/internal/infra/auth"
)

// stubService возвращает заранее заданные результаты
type stubService struct {
	req  *domain.ApprovalRequest
	list []*domain.ApprovalRequest
	err  error

	lastInput domain.CreateApprovalInput
	lastUser  int64
}

func (s *stubService) CreateRequest(_ context.Context, in domain.CreateApprovalInput) (*domain.ApprovalRequest, error) {
	s.lastInput = in
	return s.req, s.err
}

func (s *stubService) GetRequest(context.Context, string) (*domain.ApprovalRequest, error) {
	return s.req, s.err
}

func (s *stubService) ListRequests(context.Context, string) ([]*domain.ApprovalRequest, error) {
	return s.list, s.err
}

func (s *stubService) RecordDecision(_ context.Context, _ string, userID int64, _ bool, _ string) (*domain.ApprovalRequest, error) {
	s.lastUser = userID
	return s.req, s.err
}

func newRouter(svc ApprovalService) chi.Router {
	h := NewApprovalHandler(svc)
	r := chi.NewRouter()
	r.Get("/v1/approvals", h.List)
	r.Post("/v1/approvals", h.Create)
	r.Get("/v1/approvals/{id}", h.GetDetails)
	r.Post("/v1/approvals/{id}/decide", h.Decide)
	return r
}

func doRequest(router http.Handler, method, target, body string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID > 0 {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doScopedRequest(router http.Handler, method, target, body string, userID int64, scopes map[string]bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := auth.ContextWithUserID(req.Context(), userID)
	ctx = auth.ContextWithScopes(ctx, scopes)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestCreate(t *testing.T) {
	t.Run("created with requester from token", func(t *testing.T) {
		svc := &stubService{req: &domain.ApprovalRequest{ID: "req-1", Status: domain.StatusPending}}
		router := newRouter(svc)

		rec := doRequest(router, http.MethodPost, "/v1/approvals",
			`{"title":"Grade change","action_key":"noop","recipient_ids":[1,2]}`, 42)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(42), svc.lastInput.RequestedBy)
		assert.Equal(t, []int64{1, 2}, svc.lastInput.RecipientIDs)
		assert.Contains(t, rec.Body.String(), "req-1")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := doRequest(newRouter(&stubService{}), http.MethodPost, "/v1/approvals",
			`{"title":"x","action_key":"noop","recipient_ids":[1]}`, 0)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(newRouter(&stubService{}), http.MethodPost, "/v1/approvals", `{broken`, 42)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty recipients maps to 422", func(t *testing.T) {
		svc := &stubService{err: domain.ErrNoRecipients}
		rec := doRequest(newRouter(svc), http.MethodPost, "/v1/approvals",
			`{"title":"x","action_key":"noop"}`, 42)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", domain.ErrRequestNotFound, http.StatusNotFound},
		{"not a recipient", domain.ErrNotRecipient, http.StatusForbidden},
		{"already resolved", domain.ErrAlreadyResolved, http.StatusConflict},
		{"already decided", domain.ErrAlreadyDecided, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			rec := doRequest(newRouter(svc), http.MethodPost, "/v1/approvals/req-1/decide",
				`{"approved":true}`, 7)
			assert.Equal(t, tc.code, rec.Code)
		})
	}

	t.Run("successful vote", func(t *testing.T) {
		svc := &stubService{req: &domain.ApprovalRequest{ID: "req-1", Status: domain.StatusApproved}}
		rec := doRequest(newRouter(svc), http.MethodPost, "/v1/approvals/req-1/decide",
			`{"approved":true,"comment":"ok"}`, 7)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), svc.lastUser)
		assert.Contains(t, rec.Body.String(), string(domain.StatusApproved))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := doRequest(newRouter(&stubService{}), http.MethodPost, "/v1/approvals/req-1/decide",
			`{"approved":true}`, 0)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without decide scope is forbidden", func(t *testing.T) {
		svc := &stubService{req: &domain.ApprovalRequest{ID: "req-1"}}
		rec := doScopedRequest(newRouter(svc), http.MethodPost, "/v1/approvals/req-1/decide",
			`{"approved":true}`, 7, map[string]bool{"approvals.read": true})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, svc.lastUser, "service must not be reached")
	})

	t.Run("token with decide scope allowed", func(t *testing.T) {
		svc := &stubService{req: &domain.ApprovalRequest{ID: "req-1", Status: domain.StatusApproved}}
		rec := doScopedRequest(newRouter(svc), http.MethodPost, "/v1/approvals/req-1/decide",
			`{"approved":true}`, 7, map[string]bool{auth.ScopeApprovalsDecide: true})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), svc.lastUser)
	})
}

func TestGetDetails(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &stubService{req: &domain.ApprovalRequest{ID: "req-1", Status: domain.StatusPending}}
		rec := doRequest(newRouter(svc), http.MethodGet, "/v1/approvals/req-1", "", 7)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		svc := &stubService{err: domain.ErrRequestNotFound}
		rec := doRequest(newRouter(svc), http.MethodGet, "/v1/approvals/ghost", "", 7)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestList(t *testing.T) {
	svc := &stubService{list: []*domain.ApprovalRequest{
		{ID: "req-1", Status: domain.StatusPending},
	}}
	rec := doRequest(newRouter(svc), http.MethodGet, "/v1/approvals", "", 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "req-1")
}
