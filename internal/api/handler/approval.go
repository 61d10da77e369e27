package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"github.com/xela07ax/unihub-backend/internal/infra/auth"
)

// ApprovalService Описываем, что нам нужно от сервиса
type ApprovalService interface {
	CreateRequest(ctx context.Context, in domain.CreateApprovalInput) (*domain.ApprovalRequest, error)
	GetRequest(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	ListRequests(ctx context.Context, status string) ([]*domain.ApprovalRequest, error)
	RecordDecision(ctx context.Context, requestID string, userID int64, approved bool, comment string) (*domain.ApprovalRequest, error)
}

type ApprovalHandler struct {
	service ApprovalService
}

func NewApprovalHandler(s ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: s}
}

type CreateRequest struct {
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	ActionKey     string                 `json:"action_key"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	RecipientIDs  []int64                `json:"recipient_ids"`
}

func (h *ApprovalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Инициатор — авторизованный пользователь из токена
	requestedBy, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), domain.CreateApprovalInput{
		Title:         req.Title,
		Description:   req.Description,
		RequestedBy:   requestedBy,
		ActionKey:     req.ActionKey,
		ActionPayload: req.ActionPayload,
		RecipientIDs:  req.RecipientIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status") // Достаем из ?status=...
	if status == "" {
		status = "PENDING" // Дефолт для очереди согласований
	}

	list, err := h.service.ListRequests(r.Context(), status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *ApprovalHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	approval, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(approval)
}

type DecideRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

func (h *ApprovalHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Если токен несет scopes, для голоса требуется approvals.decide.
	// Токены без scopes (сервисные) ограничению не подлежат.
	if scopes := auth.ScopesFromContext(r.Context()); scopes != nil && !scopes[auth.ScopeApprovalsDecide] {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	updated, err := h.service.RecordDecision(r.Context(), id, userID, req.Approved, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// writeError мапит доменные ошибки на HTTP-коды
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRequestNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrNotRecipient):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrAlreadyResolved), errors.Is(err, domain.ErrAlreadyDecided):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNoRecipients):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
