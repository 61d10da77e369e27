package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/unihub-backend/internal/audit"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"github.com/xela07ax/unihub-backend/internal/workflow"
	"go.uber.org/zap"
)

// ApprovalRepository описывает требования сервиса к хранилищу заявок
type ApprovalRepository interface {
	CreateRequest(ctx context.Context, req *domain.ApprovalRequest) error
	GetRequestByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	FindRequests(ctx context.Context, status domain.ApprovalStatus, limit int) ([]*domain.ApprovalRequest, error)
	// Decide выполняет mutate над заявкой под блокировкой строки в одной
	// транзакции; возврат без ошибки означает, что транзакция закоммичена
	Decide(ctx context.Context, requestID string, userID int64, mutate func(*domain.ApprovalRequest) error) (*domain.ApprovalRequest, error)
}

// ActionDispatcher — post-commit диспетчеризация side-эффектов
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req *domain.ApprovalRequest, decision domain.Decision) error
}

// DirectoryProvider — каталог пользователей Identity-сервиса
type DirectoryProvider interface {
	GetUser(ctx context.Context, userID int64) (*domain.DirectoryUser, error)
}

// ApprovalService владеет жизненным циклом заявки: создание, фиксация
// голосов, вычисление кворума, резолюция и отложенный запуск side-эффектов.
type ApprovalService struct {
	repo      ApprovalRepository
	runner    ActionDispatcher
	directory DirectoryProvider // nil — обогащение отключено
	rdb       *redis.Client     // nil — сигналы отключены
	auditor   audit.Auditor
	metrics   *workflow.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewApprovalService(
	repo ApprovalRepository,
	runner ActionDispatcher,
	directory DirectoryProvider,
	rdb *redis.Client,
	auditor audit.Auditor,
	metrics *workflow.Metrics,
	logger *zap.Logger,
) *ApprovalService {
	if auditor == nil {
		auditor = audit.NopAuditor{}
	}
	return &ApprovalService{
		repo:      repo,
		runner:    runner,
		directory: directory,
		rdb:       rdb,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger.Named("approval-service"),
		now:       time.Now,
	}
}

// CreateRequest атомарно сохраняет заявку со статусом PENDING и по одному
// получателю на каждый уникальный идентификатор. Хендлер на создании
// никогда не вызывается — только на резолюции.
func (s *ApprovalService) CreateRequest(ctx context.Context, in domain.CreateApprovalInput) (*domain.ApprovalRequest, error) {
	// Валидация существования пользователей — забота внешнего слоя;
	// здесь дедупликация выполняется защитно
	ids := domain.DedupeRecipientIDs(in.RecipientIDs)
	if len(ids) == 0 {
		return nil, domain.ErrNoRecipients
	}

	now := s.now().UTC()
	req := &domain.ApprovalRequest{
		ID:            uuid.New().String(),
		Title:         strings.TrimSpace(in.Title),
		RequestedBy:   in.RequestedBy,
		ActionKey:     in.ActionKey,
		ActionPayload: in.ActionPayload,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		req.Description = &desc
	}
	if req.ActionPayload == nil {
		req.ActionPayload = map[string]interface{}{}
	}
	for _, userID := range ids {
		req.Recipients = append(req.Recipients, &domain.Recipient{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			UserID:    userID,
		})
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		s.logger.Error("failed to persist approval request",
			zap.String("action_key", req.ActionKey),
			zap.Error(err))
		return nil, fmt.Errorf("approval create failed: %w", err)
	}

	s.enrichRecipients(ctx, req)

	s.auditor.Log(audit.Event{
		ID:        uuid.New().String(),
		RequestID: req.ID,
		ActionKey: req.ActionKey,
		Kind:      audit.KindRequestCreated,
		ActorID:   req.RequestedBy,
		Payload:   map[string]interface{}{"recipients": len(req.Recipients)},
	})
	s.logger.Info("approval request created",
		zap.String("request_id", req.ID),
		zap.String("action_key", req.ActionKey),
		zap.Int("recipients", len(req.Recipients)))

	return req, nil
}

// RecordDecision фиксирует голос получателя и, если достигнут кворум,
// переводит заявку в финальный статус.
//
// Вся мутация происходит внутри одной транзакции с блокировкой строки;
// side-эффект запускается строго ПОСЛЕ коммита, чтобы хендлер никогда
// не видел резолюцию, которую еще можно откатить. Вызывающий получает
// разрешенную заявку независимо от судьбы side-эффекта (best-effort).
func (s *ApprovalService) RecordDecision(ctx context.Context, requestID string, userID int64, approved bool, comment string) (*domain.ApprovalRequest, error) {
	decision := domain.DecisionRejected
	if approved {
		decision = domain.DecisionApproved
	}

	var resolvedNow bool
	req, err := s.repo.Decide(ctx, requestID, userID, func(r *domain.ApprovalRequest) error {
		now := s.now().UTC()
		if _, err := r.RecordDecision(userID, decision, comment, now); err != nil {
			return err
		}
		// Пересчет кворума по обновленному набору голосов
		if final, ok := r.EvaluateQuorum(); ok {
			if err := r.Resolve(final, now); err != nil {
				return err
			}
			resolvedNow = true
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("decision rejected",
			zap.String("request_id", requestID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	s.metrics.DecisionsTotal.WithLabelValues(string(decision)).Inc()
	s.auditor.Log(audit.Event{
		ID:        uuid.New().String(),
		RequestID: req.ID,
		ActionKey: req.ActionKey,
		Kind:      audit.KindDecisionRecorded,
		ActorID:   userID,
		Decision:  string(decision),
	})
	s.logger.Info("decision recorded",
		zap.String("request_id", req.ID),
		zap.Int64("user_id", userID),
		zap.String("decision", string(decision)),
		zap.String("status", string(req.Status)))

	// Транзакция закоммичена — дальше только post-commit эффекты
	if resolvedNow {
		s.afterResolution(ctx, req)
	}

	return req, nil
}

// GetRequest возвращает заявку с получателями, обогащенными из каталога
func (s *ApprovalService) GetRequest(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.enrichRecipients(ctx, req)
	return req, nil
}

// ListRequests возвращает очередь заявок (Decision Queue)
func (s *ApprovalService) ListRequests(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	// Приводим к верхнему регистру, так как в константах PENDING/APPROVED
	status = strings.ToUpper(strings.TrimSpace(status))
	list, err := s.repo.FindRequests(ctx, domain.ApprovalStatus(status), 100)
	if err != nil {
		s.logger.Error("failed to list approval requests", zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch approvals: %w", err)
	}
	return list, nil
}

// afterResolution запускает side-эффект и транслирует сигнал о резолюции.
// Ошибка хендлера после коммита не отменяет резолюцию — контракт
// at-most-once для side-эффектов.
func (s *ApprovalService) afterResolution(ctx context.Context, req *domain.ApprovalRequest) {
	decision := *req.ResolvedDecision

	s.metrics.ResolutionsTotal.WithLabelValues(string(decision)).Inc()
	s.auditor.Log(audit.Event{
		ID:        uuid.New().String(),
		RequestID: req.ID,
		ActionKey: req.ActionKey,
		Kind:      audit.KindResolved,
		Decision:  string(decision),
	})
	s.logger.Info("approval request resolved",
		zap.String("request_id", req.ID),
		zap.String("decision", string(decision)))

	if err := s.runner.Dispatch(ctx, req, decision); err != nil {
		// Резолюция уже в базе; side-эффект не ретраим
		s.auditor.Log(audit.Event{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			ActionKey: req.ActionKey,
			Kind:      audit.KindActionFailed,
			Decision:  string(decision),
			Payload:   map[string]interface{}{"error": err.Error()},
		})
		s.logger.Error("action handler failed after resolution",
			zap.String("request_id", req.ID),
			zap.String("action_key", req.ActionKey),
			zap.Error(err))
	} else {
		s.auditor.Log(audit.Event{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			ActionKey: req.ActionKey,
			Kind:      audit.KindActionDispatched,
			Decision:  string(decision),
		})
	}

	s.publishResolved(ctx, req)
}

// publishResolved транслирует сигнал для дашбордов и нотификаций:
// в общий канал резолюций и в точечный канал заявки (на него подписаны
// клиенты, ожидающие исход конкретного согласования).
// Если Redis недоступен — заявка все равно разрешена, сигнал не критичен.
func (s *ApprovalService) publishResolved(ctx context.Context, req *domain.ApprovalRequest) {
	if s.rdb == nil {
		return
	}
	payload := fmt.Sprintf("%s:%s", req.ID, req.Status)
	for _, channel := range []string{infra.RedisChanApprovalResolved, infra.ApprovalEventKey(req.ID)} {
		if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			s.logger.Warn("resolution signal delivery failed",
				zap.String("request_id", req.ID),
				zap.String("channel", channel),
				zap.Error(err))
		}
	}
}

// enrichRecipients best-effort подтягивает данные каталога пользователей.
// Недоступность каталога никогда не валит операцию.
func (s *ApprovalService) enrichRecipients(ctx context.Context, req *domain.ApprovalRequest) {
	if s.directory == nil {
		return
	}
	for _, rec := range req.Recipients {
		user, err := s.directory.GetUser(ctx, rec.UserID)
		if err != nil {
			s.logger.Debug("recipient enrichment failed",
				zap.Int64("user_id", rec.UserID),
				zap.Error(err))
			continue
		}
		rec.User = user
	}
}
