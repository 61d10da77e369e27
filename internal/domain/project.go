package domain

import "time"

// Сущности учебного процесса, на которые ссылаются Action Handlers.
// Ядро workflow работает с ними только по идентификаторам:
// проверка существования, upsert и удаление строк.

// OriginStudent — маркер происхождения предложения от студента.
// Для таких предложений при одобрении комитетом создается проект.
const OriginStudent = "student"

// StaffStatusActive — статус активного назначения сотрудника на проект
const StaffStatusActive = "active"

type Proposal struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Summary   *string   `json:"summary,omitempty"`
	AuthorID  int64     `json:"author_id"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	ProposalID *int64    `json:"proposal_id,omitempty"`
	PhaseID    int64     `json:"phase_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProjectGroup struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
}

type ProjectGroupMember struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectStaff struct {
	ID         int64  `json:"id"`
	ProjectID  int64  `json:"project_id"`
	PositionID int64  `json:"position_id"`
	UserID     int64  `json:"user_id"`
	Status     string `json:"status"`
}

// AcademicPeriod — учебный период. Активным считается период, чей state
// совпадает с настроенным (academic.active_state) и чей диапазон дат
// содержит текущий момент.
type AcademicPeriod struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	State    string    `json:"state"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type Phase struct {
	ID       int64  `json:"id"`
	PeriodID int64  `json:"period_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}
