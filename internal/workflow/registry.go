package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// ActionKey идентифицирует хендлер, который сработает при резолюции заявки
type ActionKey string

const (
	ActionNoop                    ActionKey = "noop"
	ActionAddGroupMember          ActionKey = "project_group.add_member"
	ActionProposalCommittee       ActionKey = "proposal.committee"
	ActionProposalStudentDirector ActionKey = "proposal.student.director"
	ActionAssignProjectStaff      ActionKey = "project.staff.assign"
)

// Handler — контракт side-эффекта заявки.
// Ровно один из двух колбеков вызывается на каждую резолюцию.
// Хендлер сам валидирует форму своего payload: битые или неполные данные —
// молчаливый no-op, а не ошибка.
type Handler interface {
	OnApproval(ctx context.Context, req *domain.ApprovalRequest) error
	OnRejection(ctx context.Context, req *domain.ApprovalRequest) error
}

// Registry — реестр хендлеров. Заполняется на старте из конфигурации
// и дальше только читается, поэтому безопасен для конкурентного доступа.
type Registry struct {
	handlers map[ActionKey]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ActionKey]Handler)}
}

func (r *Registry) Register(key ActionKey, h Handler) {
	r.handlers[key] = h
}

// Resolve возвращает хендлер для ключа действия
func (r *Registry) Resolve(key string) (Handler, bool) {
	h, ok := r.handlers[ActionKey(key)]
	if !ok || h == nil {
		return nil, false
	}
	return h, true
}

// Bind наполняет реестр по карте привязок из конфигурации:
// action key -> идентификатор хендлера. Ссылка на неизвестный хендлер
// логируется и пропускается — заявки с таким ключом будут резолвиться
// без side-эффекта.
func Bind(reg *Registry, bindings map[string]string, available map[string]Handler, logger *zap.Logger) {
	for key, handlerID := range bindings {
		h, ok := available[handlerID]
		if !ok {
			logger.Warn("unknown handler id in workflow config",
				zap.String("action_key", key),
				zap.String("handler_id", handlerID))
			continue
		}
		reg.Register(ActionKey(key), h)
	}
}
