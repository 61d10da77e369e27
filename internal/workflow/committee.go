package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// RequestCreator — операция создания новой заявки.
// Реализуется Approval Request Service; интерфейс объявлен на стороне
// потребителя, чтобы не замыкать пакеты друг на друга.
type RequestCreator interface {
	CreateRequest(ctx context.Context, in domain.CreateApprovalInput) (*domain.ApprovalRequest, error)
}

// ForwardToCommitteeHandler обслуживает ключ proposal.student.director:
// руководитель одобрил студенческое предложение — создается новая заявка
// на комитет с ключом proposal.committee, исходным payload предложения,
// исходным инициатором и маркером origin = student.
// Payload: {"proposal": {...}, "committee_recipient_ids": [...]}.
type ForwardToCommitteeHandler struct {
	creator RequestCreator
	logger  *zap.Logger
}

func NewForwardToCommitteeHandler(creator RequestCreator, logger *zap.Logger) *ForwardToCommitteeHandler {
	return &ForwardToCommitteeHandler{
		creator: creator,
		logger:  logger.Named("committee-handler"),
	}
}

func (h *ForwardToCommitteeHandler) OnApproval(ctx context.Context, req *domain.ApprovalRequest) error {
	proposal := payloadMap(req.ActionPayload, "proposal")
	if proposal == nil {
		h.logger.Debug("forward payload has no proposal, skipping",
			zap.String("request_id", req.ID))
		return nil
	}

	recipientIDs := payloadInt64Slice(req.ActionPayload, "committee_recipient_ids")
	if len(recipientIDs) == 0 {
		h.logger.Debug("forward payload has no committee recipients, skipping",
			zap.String("request_id", req.ID))
		return nil
	}

	forwarded, err := h.creator.CreateRequest(ctx, domain.CreateApprovalInput{
		Title:       req.Title,
		RequestedBy: req.RequestedBy,
		ActionKey:   string(ActionProposalCommittee),
		ActionPayload: map[string]interface{}{
			"proposal": proposal,
			"origin":   domain.OriginStudent,
		},
		RecipientIDs: recipientIDs,
	})
	if err != nil {
		return err
	}

	h.logger.Info("proposal forwarded to committee",
		zap.String("request_id", req.ID),
		zap.String("committee_request_id", forwarded.ID),
		zap.Int("recipients", len(forwarded.Recipients)))
	return nil
}

// OnRejection ничего не делает: отклоненное предложение дальше не идет
func (*ForwardToCommitteeHandler) OnRejection(context.Context, *domain.ApprovalRequest) error {
	return nil
}
