package workflow

import (
	"context"

	"github.com/xela07ax/unihub-backend/internal/domain"
)

// NoopHandler — заявка без side-эффектов: важен сам факт согласования
type NoopHandler struct{}

func NewNoopHandler() *NoopHandler { return &NoopHandler{} }

func (*NoopHandler) OnApproval(context.Context, *domain.ApprovalRequest) error  { return nil }
func (*NoopHandler) OnRejection(context.Context, *domain.ApprovalRequest) error { return nil }
