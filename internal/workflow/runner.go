package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// Runner вызывается строго после коммита транзакции резолюции.
// Отсутствующий или неправильно сконфигурированный хендлер никогда
// не мешает заявке считаться разрешенной: side-эффект просто пропускается.
type Runner struct {
	registry *Registry
	metrics  *Metrics
	logger   *zap.Logger
}

func NewRunner(registry *Registry, metrics *Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		registry: registry,
		metrics:  metrics,
		logger:   logger.Named("action-runner"),
	}
}

// Dispatch находит хендлер по action key заявки и вызывает ровно один
// из колбеков. Ошибку хендлера Runner не перехватывает и не ретраит —
// она уходит вызывающему post-commit хука.
func (r *Runner) Dispatch(ctx context.Context, req *domain.ApprovalRequest, decision domain.Decision) error {
	h, ok := r.registry.Resolve(req.ActionKey)
	if !ok {
		r.logger.Warn("no handler registered for action key, side effect skipped",
			zap.String("request_id", req.ID),
			zap.String("action_key", req.ActionKey))
		r.metrics.DispatchTotal.WithLabelValues(req.ActionKey, "skipped").Inc()
		return nil
	}

	var err error
	switch decision {
	case domain.DecisionApproved:
		err = h.OnApproval(ctx, req)
	default:
		err = h.OnRejection(ctx, req)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.DispatchTotal.WithLabelValues(req.ActionKey, outcome).Inc()
	return err
}
