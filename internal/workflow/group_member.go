package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// GroupStore описывает требования хендлера членства к хранилищу
type GroupStore interface {
	GroupProject(ctx context.Context, groupID int64) (int64, bool, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	MoveMemberToGroup(ctx context.Context, projectID, groupID, userID int64) error
	RemoveGroupMember(ctx context.Context, groupID, userID int64) error
}

// AddGroupMemberHandler обслуживает ключ project_group.add_member.
// Payload: {"group_id": G, "user_id": U}.
type AddGroupMemberHandler struct {
	store  GroupStore
	logger *zap.Logger
}

func NewAddGroupMemberHandler(store GroupStore, logger *zap.Logger) *AddGroupMemberHandler {
	return &AddGroupMemberHandler{
		store:  store,
		logger: logger.Named("group-member-handler"),
	}
}

// OnApproval переносит пользователя в целевую группу: убирает его из
// других групп того же проекта и идемпотентно добавляет членство.
// Невалидный payload или несуществующие сущности — молчаливый no-op:
// payload приходит от доверенного кода, а не от пользователя.
func (h *AddGroupMemberHandler) OnApproval(ctx context.Context, req *domain.ApprovalRequest) error {
	groupID := payloadInt64(req.ActionPayload, "group_id")
	userID := payloadInt64(req.ActionPayload, "user_id")
	if groupID <= 0 || userID <= 0 {
		h.logger.Debug("add_member payload incomplete, skipping",
			zap.String("request_id", req.ID))
		return nil
	}

	projectID, ok, err := h.store.GroupProject(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		h.logger.Debug("target group does not exist, skipping",
			zap.String("request_id", req.ID),
			zap.Int64("group_id", groupID))
		return nil
	}

	exists, err := h.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		h.logger.Debug("target user does not exist, skipping",
			zap.String("request_id", req.ID),
			zap.Int64("user_id", userID))
		return nil
	}

	return h.store.MoveMemberToGroup(ctx, projectID, groupID, userID)
}

// OnRejection идемпотентно убирает членство из целевой группы
func (h *AddGroupMemberHandler) OnRejection(ctx context.Context, req *domain.ApprovalRequest) error {
	groupID := payloadInt64(req.ActionPayload, "group_id")
	userID := payloadInt64(req.ActionPayload, "user_id")
	if groupID <= 0 || userID <= 0 {
		return nil
	}
	return h.store.RemoveGroupMember(ctx, groupID, userID)
}
