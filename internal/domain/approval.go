package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Статусы State Machine заявки на согласование
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Decision — вердикт отдельного получателя или итоговый вердикт заявки
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

var (
	ErrAlreadyResolved = errors.New("approval request already resolved")
	ErrNotRecipient    = errors.New("user is not a recipient of this approval request")
	ErrAlreadyDecided  = errors.New("recipient has already decided")
	ErrNoRecipients    = errors.New("approval request requires at least one recipient")
	ErrRequestNotFound = errors.New("approval request not found")
)

// MaxCommentLen — ограничение на длину комментария получателя
const MaxCommentLen = 2000

// ApprovalRequest — заявка, ожидающая решения большинства получателей.
// Инвариант: Status == PENDING <=> ResolvedDecision == nil <=> ResolvedAt == nil.
// После выхода из PENDING заявка неизменяема.
type ApprovalRequest struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   *string                `json:"description,omitempty"`
	RequestedBy   int64                  `json:"requested_by"`
	ActionKey     string                 `json:"action_key"`
	ActionPayload map[string]interface{} `json:"action_payload"` // Непрозрачные данные, читает только хендлер

	Status           ApprovalStatus `json:"status"`
	ResolvedDecision *Decision      `json:"resolved_decision,omitempty"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty"`

	Recipients []*Recipient `json:"recipients"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recipient — получатель, имеющий право ровно на один голос по заявке.
// Инвариант: Decision == nil <=> DecisionAt == nil.
type Recipient struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"approval_request_id"`
	UserID     int64      `json:"user_id"`
	Decision   *Decision  `json:"decision,omitempty"`
	Comment    *string    `json:"comment,omitempty"`
	DecisionAt *time.Time `json:"decision_at,omitempty"`

	// User заполняется best-effort из внешнего каталога пользователей
	User *DirectoryUser `json:"user,omitempty"`
}

// CreateApprovalInput — входные данные операции создания заявки
type CreateApprovalInput struct {
	Title         string
	Description   string
	RequestedBy   int64
	ActionKey     string
	ActionPayload map[string]interface{}
	RecipientIDs  []int64
}

// Status возвращает статус заявки, соответствующий итоговому вердикту
func (d Decision) Status() ApprovalStatus {
	if d == DecisionApproved {
		return StatusApproved
	}
	return StatusRejected
}

// QuorumThreshold считает порог строгого большинства: floor(N/2)+1.
// Для одного получателя порог равен 1, для двух — 2, для трех — 2.
func QuorumThreshold(totalRecipients int) int {
	if totalRecipients < 1 {
		totalRecipients = 1
	}
	return totalRecipients/2 + 1
}

// RecordDecision фиксирует голос получателя.
// Проверки выполняются строго по порядку: заявка еще PENDING ->
// пользователь входит в список получателей -> получатель еще не голосовал.
func (a *ApprovalRequest) RecordDecision(userID int64, d Decision, comment string, now time.Time) (*Recipient, error) {
	if a.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}

	var rec *Recipient
	for _, r := range a.Recipients {
		if r.UserID == userID {
			rec = r
			break
		}
	}
	if rec == nil {
		return nil, ErrNotRecipient
	}
	if rec.Decision != nil {
		return nil, ErrAlreadyDecided
	}

	rec.Decision = &d
	rec.DecisionAt = &now

	// Пустой комментарий нормализуем в отсутствие значения
	comment = strings.TrimSpace(comment)
	if comment != "" {
		// Лимит считаем в рунах, чтобы не разрезать многобайтовый символ
		if utf8.RuneCountInString(comment) > MaxCommentLen {
			comment = string([]rune(comment)[:MaxCommentLen])
		}
		rec.Comment = &comment
	}

	return rec, nil
}

// EvaluateQuorum пересчитывает кворум по текущему набору голосов.
// Возвращает итоговый вердикт и true, если строгое большинство достигнуто.
func (a *ApprovalRequest) EvaluateQuorum() (Decision, bool) {
	threshold := QuorumThreshold(len(a.Recipients))

	var approvals, rejections int
	for _, r := range a.Recipients {
		if r.Decision == nil {
			continue
		}
		switch *r.Decision {
		case DecisionApproved:
			approvals++
		case DecisionRejected:
			rejections++
		}
	}

	if approvals >= threshold {
		return DecisionApproved, true
	}
	if rejections >= threshold {
		return DecisionRejected, true
	}
	return "", false
}

// Resolve переводит заявку в финальный статус.
// Переход одноразовый: повторный вызов вернет ErrAlreadyResolved.
func (a *ApprovalRequest) Resolve(d Decision, now time.Time) error {
	if a.Status != StatusPending {
		return ErrAlreadyResolved
	}
	a.Status = d.Status()
	a.ResolvedDecision = &d
	a.ResolvedAt = &now
	a.UpdatedAt = now
	return nil
}

// Resolved сообщает, вышла ли заявка из PENDING
func (a *ApprovalRequest) Resolved() bool {
	return a.Status != StatusPending
}

// DedupeRecipientIDs убирает дубли, сохраняя порядок первого вхождения
func DedupeRecipientIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
