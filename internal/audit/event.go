package audit

import "time"

// Виды событий жизненного цикла заявки
const (
	KindRequestCreated   = "REQUEST_CREATED"
	KindDecisionRecorded = "DECISION_RECORDED"
	KindResolved         = "RESOLVED"
	KindActionDispatched = "ACTION_DISPATCHED"
	KindActionFailed     = "ACTION_FAILED"
)

type Event struct {
	ID        string                 `json:"id"`         // UUID события
	RequestID string                 `json:"request_id"` // Заявка, к которой относится событие
	ActionKey string                 `json:"action_key"` // Ключ действия заявки
	Kind      string                 `json:"kind"`       // Что произошло
	ActorID   int64                  `json:"actor_id"`   // Кто инициировал (0 — система)
	Decision  string                 `json:"decision"`   // Вердикт, если применимо
	Payload   map[string]interface{} `json:"payload"`    // Контекст события
	Timestamp time.Time              `json:"timestamp"`
}
