package postgres

/*
Файл project_repo.go обслуживает доменные side-эффекты Action Handlers:
членство в проектных группах, назначения сотрудников, создание предложений
и проектов, вычисление активного учебного периода.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/unihub-backend/internal/domain"
)

// GroupProject возвращает проект, которому принадлежит группа.
// Второе значение false — группа не существует (не ошибка: хендлеры
// трактуют несуществующие сущности как no-op).
func (s *Store) GroupProject(ctx context.Context, groupID int64) (int64, bool, error) {
	var projectID int64
	err := s.pool.QueryRow(ctx,
		`SELECT project_id FROM project_groups WHERE id = $1`, groupID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("postgres: failed to fetch group: %w", err)
	}
	return projectID, true, nil
}

// MoveMemberToGroup атомарно переносит пользователя в целевую группу:
// сначала убирает его из всех остальных групп того же проекта, затем
// идемпотентно добавляет членство (upsert).
func (s *Store) MoveMemberToGroup(ctx context.Context, projectID, groupID, userID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Убираем пользователя из других групп проекта
	_, err = tx.Exec(ctx, `
		DELETE FROM project_group_members m
		USING project_groups g
		WHERE m.group_id = g.id
		  AND g.project_id = $1
		  AND m.user_id = $2
		  AND m.group_id <> $3`,
		projectID, userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to clear memberships: %w", err)
	}

	// 2. Идемпотентно добавляем в целевую группу
	_, err = tx.Exec(ctx, `
		INSERT INTO project_group_members (group_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING`,
		groupID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit membership move: %w", err)
	}
	return nil
}

// RemoveGroupMember идемпотентно удаляет членство в группе
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM project_group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("postgres: failed to remove membership: %w", err)
	}
	return nil
}

// ProjectExists проверяет существование проекта
func (s *Store) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to check project: %w", err)
	}
	return exists, nil
}

// UpsertProjectStaff создает или реактивирует назначение сотрудника
func (s *Store) UpsertProjectStaff(ctx context.Context, projectID, positionID, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_staff (project_id, position_id, user_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, position_id, user_id)
		DO UPDATE SET status = EXCLUDED.status`,
		projectID, positionID, userID, domain.StaffStatusActive,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert staff assignment: %w", err)
	}
	return nil
}

// DeleteProjectStaff удаляет назначение по тройке (проект, позиция, пользователь)
func (s *Store) DeleteProjectStaff(ctx context.Context, projectID, positionID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM project_staff WHERE project_id = $1 AND position_id = $2 AND user_id = $3`,
		projectID, positionID, userID)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete staff assignment: %w", err)
	}
	return nil
}

// CreateProposal сохраняет предложение, проставляя сгенерированный ID
func (s *Store) CreateProposal(ctx context.Context, p *domain.Proposal) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO proposals (title, summary, author_id, origin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.Title, nullString(p.Summary), p.AuthorID, p.Origin, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to create proposal: %w", err)
	}
	return nil
}

// CreateProject сохраняет проект, проставляя сгенерированный ID
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	var proposalID sql.NullInt64
	if p.ProposalID != nil {
		proposalID = sql.NullInt64{Int64: *p.ProposalID, Valid: true}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (title, proposal_id, phase_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Title, proposalID, p.PhaseID, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to create project: %w", err)
	}
	return nil
}

// ActivePeriod вычисляет текущий активный учебный период:
// период в настроенном состоянии, чей диапазон дат содержит now;
// fallback — самый ранний период в этом состоянии. nil — периодов нет.
func (s *Store) ActivePeriod(ctx context.Context, state string, now time.Time) (*domain.AcademicPeriod, error) {
	const columns = `id, name, state, starts_at, ends_at`

	period := &domain.AcademicPeriod{}
	err := s.pool.QueryRow(ctx, `
		SELECT `+columns+` FROM academic_periods
		WHERE state = $1 AND starts_at <= $2 AND ends_at >= $2
		ORDER BY starts_at
		LIMIT 1`, state, now,
	).Scan(&period.ID, &period.Name, &period.State, &period.StartsAt, &period.EndsAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Fallback: самый ранний период в активном состоянии
		err = s.pool.QueryRow(ctx, `
			SELECT `+columns+` FROM academic_periods
			WHERE state = $1
			ORDER BY starts_at
			LIMIT 1`, state,
		).Scan(&period.ID, &period.Name, &period.State, &period.StartsAt, &period.EndsAt)
	}

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to resolve active period: %w", err)
	}
	return period, nil
}

// FirstPhase возвращает первую фазу периода (nil — фаз нет)
func (s *Store) FirstPhase(ctx context.Context, periodID int64) (*domain.Phase, error) {
	phase := &domain.Phase{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, period_id, name, position FROM phases
		WHERE period_id = $1
		ORDER BY position
		LIMIT 1`, periodID,
	).Scan(&phase.ID, &phase.PeriodID, &phase.Name, &phase.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to fetch first phase: %w", err)
	}
	return phase, nil
}

// CreatePhase сохраняет фазу, проставляя сгенерированный ID
func (s *Store) CreatePhase(ctx context.Context, ph *domain.Phase) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO phases (period_id, name, position)
		VALUES ($1, $2, $3)
		RETURNING id`,
		ph.PeriodID, ph.Name, ph.Position,
	).Scan(&ph.ID)
	if err != nil {
		return fmt.Errorf("postgres: failed to create phase: %w", err)
	}
	return nil
}
