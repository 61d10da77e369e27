package postgres

/*
Файл approval_repo.go — персистентность движка согласований.

Ключевой метод Decide выполняет весь цикл «голос -> кворум -> резолюция»
внутри одной транзакции с пессимистичной блокировкой строки заявки
(SELECT ... FOR UPDATE). Это сериализует конкурентные решения по одной
заявке: второй голосующий увидит уже обновленное состояние первого,
и переход в финальный статус случится ровно один раз.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/unihub-backend/internal/domain"
)

const approvalColumns = `id, title, description, requested_by, action_key, action_payload,
       status, resolved_decision, resolved_at, created_at, updated_at`

const recipientColumns = `id, approval_request_id, user_id, decision, comment, decision_at`

// CreateRequest атомарно сохраняет заявку вместе со всеми получателями.
// Всё или ничего: при ошибке вставки любого получателя транзакция откатывается.
func (s *Store) CreateRequest(ctx context.Context, req *domain.ApprovalRequest) error {
	payload, err := json.Marshal(req.ActionPayload)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode action payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO approval_requests (id, title, description, requested_by, action_key, action_payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		req.ID, req.Title, nullString(req.Description), req.RequestedBy,
		req.ActionKey, payload, req.Status, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create approval request: %w", err)
	}

	// Пакетная вставка получателей одним обменом с БД
	b := &pgx.Batch{}
	for _, rec := range req.Recipients {
		b.Queue(`
			INSERT INTO approval_request_recipients (id, approval_request_id, user_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			rec.ID, req.ID, rec.UserID, req.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("postgres: failed to create recipients: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit request creation: %w", err)
	}
	return nil
}

// GetRequestByID возвращает заявку вместе с получателями.
func (s *Store) GetRequestByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("postgres: failed to fetch approval request: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+recipientColumns+`
		 FROM approval_request_recipients
		 WHERE approval_request_id = $1
		 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recipients: %w", err)
	}
	defer rows.Close()

	req.Recipients, err = scanRecipients(rows)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// FindRequests фильтрация очереди заявок (Decision Queue).
func (s *Store) FindRequests(ctx context.Context, status domain.ApprovalStatus, limit int) ([]*domain.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query approval requests: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.ApprovalRequest, 0)
	index := make(map[string]*domain.ApprovalRequest)
	ids := make([]string, 0)

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan approval request: %w", err)
		}
		req.Recipients = make([]*domain.Recipient, 0)
		results = append(results, req)
		index[req.ID] = req
		ids = append(ids, req.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	if len(ids) == 0 {
		return results, nil
	}

	// Получатели всех найденных заявок одним запросом
	recRows, err := s.pool.Query(ctx,
		`SELECT `+recipientColumns+`
		 FROM approval_request_recipients
		 WHERE approval_request_id = ANY($1)
		 ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query recipients: %w", err)
	}
	defer recRows.Close()

	recipients, err := scanRecipients(recRows)
	if err != nil {
		return nil, err
	}
	for _, rec := range recipients {
		if req, ok := index[rec.RequestID]; ok {
			req.Recipients = append(req.Recipients, rec)
		}
	}

	return results, nil
}

// Decide выполняет мутацию заявки под блокировкой строки.
//
// Порядок внутри транзакции:
//  1. SELECT заявки FOR UPDATE — конкурентные решения встают в очередь;
//  2. SELECT получателей FOR UPDATE — консистентный снимок голосов;
//  3. mutate — доменная логика (валидация, голос, кворум, резолюция);
//  4. запись измененной строки получателя;
//  5. при резолюции — UPDATE заявки с защитным условием status = 'PENDING'.
//
// Ошибка из mutate откатывает транзакцию без каких-либо записей.
func (s *Store) Decide(ctx context.Context, requestID string, userID int64, mutate func(*domain.ApprovalRequest) error) (*domain.ApprovalRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1 FOR UPDATE`, requestID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("postgres: failed to lock approval request: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+recipientColumns+`
		 FROM approval_request_recipients
		 WHERE approval_request_id = $1
		 ORDER BY created_at, id
		 FOR UPDATE`, requestID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to lock recipients: %w", err)
	}
	req.Recipients, err = scanRecipients(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Доменные проверки и мутация. Ошибки (AlreadyResolved, NotRecipient,
	// AlreadyDecided) возвращаем как есть — хендлер мапит их на HTTP-коды.
	if err := mutate(req); err != nil {
		return nil, err
	}

	// Персистим голос получателя
	var rec *domain.Recipient
	for _, r := range req.Recipients {
		if r.UserID == userID {
			rec = r
			break
		}
	}
	if rec != nil && rec.Decision != nil {
		_, err = tx.Exec(ctx, `
			UPDATE approval_request_recipients
			SET decision = $1, comment = $2, decision_at = $3
			WHERE approval_request_id = $4 AND user_id = $5`,
			string(*rec.Decision), nullString(rec.Comment), rec.DecisionAt, requestID, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to persist decision: %w", err)
		}
	}

	// Персистим резолюцию, если кворум достигнут
	if req.Resolved() {
		// Условие status = 'PENDING' — защитный re-check: если заявка
		// каким-то образом уже не PENDING, запись резолюции пропускается.
		// Под корректной блокировкой строка обновляется всегда.
		_, err := tx.Exec(ctx, `
			UPDATE approval_requests
			SET status = $1, resolved_decision = $2, resolved_at = $3, updated_at = NOW()
			WHERE id = $4 AND status = 'PENDING'`,
			req.Status, string(*req.ResolvedDecision), req.ResolvedAt, requestID,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to resolve approval request: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit decision: %w", err)
	}
	return req, nil
}

// rowScanner покрывает и pgx.Row, и pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*domain.ApprovalRequest, error) {
	var req domain.ApprovalRequest
	var description, resolvedDecision sql.NullString
	var resolvedAt sql.NullTime
	var payload []byte

	err := row.Scan(
		&req.ID,
		&req.Title,
		&description,
		&req.RequestedBy,
		&req.ActionKey,
		&payload,
		&req.Status,
		&resolvedDecision,
		&resolvedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Маппим NULL значения из БД
	if description.Valid {
		val := description.String
		req.Description = &val
	}
	if resolvedDecision.Valid {
		d := domain.Decision(resolvedDecision.String)
		req.ResolvedDecision = &d
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		req.ResolvedAt = &t
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req.ActionPayload); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode action payload: %w", err)
		}
	}

	return &req, nil
}

func scanRecipients(rows pgx.Rows) ([]*domain.Recipient, error) {
	results := make([]*domain.Recipient, 0)

	for rows.Next() {
		var rec domain.Recipient
		var decision, comment sql.NullString
		var decisionAt sql.NullTime

		err := rows.Scan(&rec.ID, &rec.RequestID, &rec.UserID, &decision, &comment, &decisionAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan recipient: %w", err)
		}

		if decision.Valid {
			d := domain.Decision(decision.String)
			rec.Decision = &d
		}
		if comment.Valid {
			val := comment.String
			rec.Comment = &val
		}
		if decisionAt.Valid {
			t := decisionAt.Time
			rec.DecisionAt = &t
		}

		results = append(results, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	return results, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
