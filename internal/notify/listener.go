package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"go.uber.org/zap"
)

// ResolutionSignal — разобранный сигнал о резолюции заявки.
// Формат на проводе: "<request_id>:<STATUS>".
type ResolutionSignal struct {
	RequestID string
	Status    domain.ApprovalStatus
}

// Sink получает сигнал о резолюции (рассылка, websocket, дашборд)
type Sink interface {
	Notify(ctx context.Context, sig ResolutionSignal)
}

// LogSink — простейший потребитель: пишет сигнал в журнал
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(_ context.Context, sig ResolutionSignal) {
	s.Logger.Info("approval resolved",
		zap.String("request_id", sig.RequestID),
		zap.String("status", string(sig.Status)))
}

// Listener подписывается на Redis-канал резолюций и раздает сигналы
// подписчикам. Держит потокобезопасный кэш последних резолюций, чтобы
// потребители могли дедуплицировать доставку.
type Listener struct {
	rdb    *redis.Client
	sinks  []Sink
	logger *zap.Logger

	mu   sync.RWMutex
	seen map[string]domain.ApprovalStatus

	signalsTotal prometheus.Counter
}

func NewListener(rdb *redis.Client, reg prometheus.Registerer, logger *zap.Logger, sinks ...Sink) *Listener {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Listener{
		rdb:    rdb,
		sinks:  sinks,
		logger: logger.Named("resolution-listener"),
		seen:   make(map[string]domain.ApprovalStatus),
		signalsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "unihub_resolution_signals_total",
			Help: "Number of approval resolution signals received.",
		}),
	}
}

// Run подписывается на канал и обрабатывает сигналы до отмены контекста
func (l *Listener) Run(ctx context.Context) {
	pubsub := l.rdb.Subscribe(ctx, infra.RedisChanApprovalResolved)
	defer pubsub.Close()

	ch := pubsub.Channel()
	l.logger.Info("resolution listener started",
		zap.String("channel", infra.RedisChanApprovalResolved))

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				l.logger.Warn("resolution channel closed")
				return
			}
			sig, ok := ParseSignal(msg.Payload)
			if !ok {
				l.logger.Warn("malformed resolution signal", zap.String("payload", msg.Payload))
				continue
			}
			l.handle(ctx, sig)

		case <-ctx.Done():
			l.logger.Info("resolution listener stopping")
			return
		}
	}
}

func (l *Listener) handle(ctx context.Context, sig ResolutionSignal) {
	l.mu.Lock()
	l.seen[sig.RequestID] = sig.Status
	l.mu.Unlock()

	l.signalsTotal.Inc()
	for _, sink := range l.sinks {
		sink.Notify(ctx, sig)
	}
}

// Resolved возвращает зафиксированный статус заявки, если сигнал по ней
// уже приходил за время жизни процесса
func (l *Listener) Resolved(requestID string) (domain.ApprovalStatus, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	status, ok := l.seen[requestID]
	return status, ok
}

// ParseSignal разбирает сигнал формата "<request_id>:<STATUS>"
func ParseSignal(payload string) (ResolutionSignal, bool) {
	// Идентификатор — UUID, двоеточий не содержит
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 || idx == len(payload)-1 {
		return ResolutionSignal{}, false
	}
	status := domain.ApprovalStatus(payload[idx+1:])
	if status != domain.StatusApproved && status != domain.StatusRejected {
		return ResolutionSignal{}, false
	}
	return ResolutionSignal{RequestID: payload[:idx], Status: status}, true
}
