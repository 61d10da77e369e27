package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// StaffStore описывает требования хендлера назначений к хранилищу
type StaffStore interface {
	ProjectExists(ctx context.Context, projectID int64) (bool, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	UpsertProjectStaff(ctx context.Context, projectID, positionID, userID int64) error
	DeleteProjectStaff(ctx context.Context, projectID, positionID, userID int64) error
}

// AssignProjectStaffHandler обслуживает ключ project.staff.assign.
// Payload: {"project_id": P, "position_id": Pos, "user_id": U}.
type AssignProjectStaffHandler struct {
	store  StaffStore
	logger *zap.Logger
}

func NewAssignProjectStaffHandler(store StaffStore, logger *zap.Logger) *AssignProjectStaffHandler {
	return &AssignProjectStaffHandler{
		store:  store,
		logger: logger.Named("staff-handler"),
	}
}

// OnApproval создает (или реактивирует) назначение со статусом active
func (h *AssignProjectStaffHandler) OnApproval(ctx context.Context, req *domain.ApprovalRequest) error {
	projectID, positionID, userID, ok := h.extract(req)
	if !ok {
		return nil
	}

	exists, err := h.store.ProjectExists(ctx, projectID)
	if err != nil {
		return err
	}
	if !exists {
		h.logger.Debug("project does not exist, skipping",
			zap.String("request_id", req.ID),
			zap.Int64("project_id", projectID))
		return nil
	}

	userOK, err := h.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !userOK {
		h.logger.Debug("user does not exist, skipping",
			zap.String("request_id", req.ID),
			zap.Int64("user_id", userID))
		return nil
	}

	return h.store.UpsertProjectStaff(ctx, projectID, positionID, userID)
}

// OnRejection удаляет назначение по тройке (проект, позиция, пользователь)
func (h *AssignProjectStaffHandler) OnRejection(ctx context.Context, req *domain.ApprovalRequest) error {
	projectID, positionID, userID, ok := h.extract(req)
	if !ok {
		return nil
	}
	return h.store.DeleteProjectStaff(ctx, projectID, positionID, userID)
}

func (h *AssignProjectStaffHandler) extract(req *domain.ApprovalRequest) (projectID, positionID, userID int64, ok bool) {
	projectID = payloadInt64(req.ActionPayload, "project_id")
	positionID = payloadInt64(req.ActionPayload, "position_id")
	userID = payloadInt64(req.ActionPayload, "user_id")
	if projectID <= 0 || positionID <= 0 || userID <= 0 {
		h.logger.Debug("staff payload incomplete, skipping", zap.String("request_id", req.ID))
		return 0, 0, 0, false
	}
	return projectID, positionID, userID, true
}
