package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: сколько голосов зафиксировано
	DecisionsTotal *prometheus.CounterVec

	// Сколько заявок дошло до финального статуса
	ResolutionsTotal *prometheus.CounterVec

	// Диспетчеризация хендлеров: ok / error / skipped
	DispatchTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "unihub_approval_decisions_total",
			Help: "Total number of recorded recipient decisions.",
		}, []string{"decision"}),

		ResolutionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "unihub_approval_resolutions_total",
			Help: "Total number of approval requests that reached quorum.",
		}, []string{"decision"}),

		DispatchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "unihub_action_dispatch_total",
			Help: "Total number of post-resolution handler dispatches by outcome.",
		}, []string{"action_key", "outcome"}), // outcome: ok, error, skipped
	}
}
