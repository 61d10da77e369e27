package workflow

import (
	"context"
	"time"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// ProposalStore описывает требования хендлера предложений к хранилищу
type ProposalStore interface {
	CreateProposal(ctx context.Context, p *domain.Proposal) error
	ActivePeriod(ctx context.Context, state string, now time.Time) (*domain.AcademicPeriod, error)
	FirstPhase(ctx context.Context, periodID int64) (*domain.Phase, error)
	CreatePhase(ctx context.Context, ph *domain.Phase) error
	CreateProject(ctx context.Context, p *domain.Project) error
}

// CreateProposalHandler обслуживает ключ proposal.committee: комитет
// одобрил предложение — создаем запись Proposal. Если предложение
// пришло от студента (маркер origin == student), дополнительно создается
// проект, привязанный к первой фазе текущего активного учебного периода.
// Payload: {"proposal": {"title": ..., "summary": ..., "author_id": ...}, "origin": ...}.
type CreateProposalHandler struct {
	store       ProposalStore
	activeState string // состояние "активного" периода из конфигурации
	logger      *zap.Logger
	now         func() time.Time
}

func NewCreateProposalHandler(store ProposalStore, activeState string, logger *zap.Logger) *CreateProposalHandler {
	return &CreateProposalHandler{
		store:       store,
		activeState: activeState,
		logger:      logger.Named("proposal-handler"),
		now:         time.Now,
	}
}

func (h *CreateProposalHandler) OnApproval(ctx context.Context, req *domain.ApprovalRequest) error {
	pm := payloadMap(req.ActionPayload, "proposal")
	if pm == nil {
		h.logger.Debug("proposal payload missing, skipping", zap.String("request_id", req.ID))
		return nil
	}

	title := payloadString(pm, "title")
	if title == "" {
		h.logger.Debug("proposal title missing, skipping", zap.String("request_id", req.ID))
		return nil
	}

	// Автор — из payload, иначе инициатор заявки
	authorID := payloadInt64(pm, "author_id")
	if authorID <= 0 {
		authorID = req.RequestedBy
	}

	proposal := &domain.Proposal{
		Title:     title,
		AuthorID:  authorID,
		Origin:    payloadString(req.ActionPayload, "origin"),
		CreatedAt: h.now().UTC(),
	}
	if summary := payloadString(pm, "summary"); summary != "" {
		proposal.Summary = &summary
	}

	if err := h.store.CreateProposal(ctx, proposal); err != nil {
		return err
	}
	h.logger.Info("proposal created from approved request",
		zap.String("request_id", req.ID),
		zap.Int64("proposal_id", proposal.ID))

	if proposal.Origin != domain.OriginStudent {
		return nil
	}

	// Студенческое предложение сразу становится проектом
	return h.createProject(ctx, req, proposal)
}

// OnRejection ничего не делает: отклоненное предложение не сохраняется
func (h *CreateProposalHandler) OnRejection(context.Context, *domain.ApprovalRequest) error {
	return nil
}

// createProject привязывает проект к первой фазе активного периода.
// Если у выбранного периода фаз нет, создается стартовая фаза —
// унаследованный convenience-дефолт, сознательно не расширяем.
func (h *CreateProposalHandler) createProject(ctx context.Context, req *domain.ApprovalRequest, proposal *domain.Proposal) error {
	period, err := h.store.ActivePeriod(ctx, h.activeState, h.now())
	if err != nil {
		return err
	}
	if period == nil {
		h.logger.Warn("no active academic period, project not created",
			zap.String("request_id", req.ID),
			zap.Int64("proposal_id", proposal.ID))
		return nil
	}

	phase, err := h.store.FirstPhase(ctx, period.ID)
	if err != nil {
		return err
	}
	if phase == nil {
		phase = &domain.Phase{
			PeriodID: period.ID,
			Name:     "Phase 1",
			Position: 1,
		}
		if err := h.store.CreatePhase(ctx, phase); err != nil {
			return err
		}
		h.logger.Info("initial phase auto-created for period",
			zap.Int64("period_id", period.ID),
			zap.Int64("phase_id", phase.ID))
	}

	project := &domain.Project{
		Title:      proposal.Title,
		ProposalID: &proposal.ID,
		PhaseID:    phase.ID,
		CreatedAt:  h.now().UTC(),
	}
	if err := h.store.CreateProject(ctx, project); err != nil {
		return err
	}

	h.logger.Info("project created from student proposal",
		zap.Int64("proposal_id", proposal.ID),
		zap.Int64("project_id", project.ID),
		zap.Int64("phase_id", phase.ID))
	return nil
}
