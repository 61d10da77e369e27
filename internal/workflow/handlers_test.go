package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

func requestWithPayload(key string, payload map[string]interface{}) *domain.ApprovalRequest {
	return &domain.ApprovalRequest{
		ID:            "req-1",
		Title:         "AI Research Proposal",
		RequestedBy:   100,
		ActionKey:     key,
		ActionPayload: payload,
		Status:        domain.StatusApproved,
	}
}

// --- Add Project-Group Member ---

type fakeGroupStore struct {
	groups  map[int64]int64 // group_id -> project_id
	users   map[int64]bool
	moved   []int64 // [projectID, groupID, userID] последнего переноса
	removed []int64
}

func (f *fakeGroupStore) GroupProject(_ context.Context, groupID int64) (int64, bool, error) {
	pid, ok := f.groups[groupID]
	return pid, ok, nil
}

func (f *fakeGroupStore) UserExists(_ context.Context, userID int64) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeGroupStore) MoveMemberToGroup(_ context.Context, projectID, groupID, userID int64) error {
	f.moved = []int64{projectID, groupID, userID}
	return nil
}

func (f *fakeGroupStore) RemoveGroupMember(_ context.Context, groupID, userID int64) error {
	f.removed = []int64{groupID, userID}
	return nil
}

func TestAddGroupMemberHandler(t *testing.T) {
	logger := zap.NewNop()

	t.Run("approval moves user into target group", func(t *testing.T) {
		store := &fakeGroupStore{groups: map[int64]int64{5: 77}, users: map[int64]bool{3: true}}
		h := NewAddGroupMemberHandler(store, logger)

		req := requestWithPayload("project_group.add_member",
			map[string]interface{}{"group_id": float64(5), "user_id": float64(3)})
		require.NoError(t, h.OnApproval(context.Background(), req))
		assert.Equal(t, []int64{77, 5, 3}, store.moved)
	})

	t.Run("missing group is a silent no-op", func(t *testing.T) {
		store := &fakeGroupStore{groups: map[int64]int64{}, users: map[int64]bool{3: true}}
		h := NewAddGroupMemberHandler(store, logger)

		req := requestWithPayload("project_group.add_member",
			map[string]interface{}{"group_id": float64(404), "user_id": float64(3)})
		require.NoError(t, h.OnApproval(context.Background(), req))
		assert.Nil(t, store.moved, "no mutation for unknown group")
	})

	t.Run("malformed payload is a silent no-op", func(t *testing.T) {
		store := &fakeGroupStore{}
		h := NewAddGroupMemberHandler(store, logger)

		req := requestWithPayload("project_group.add_member",
			map[string]interface{}{"group_id": "oops"})
		require.NoError(t, h.OnApproval(context.Background(), req))
		assert.Nil(t, store.moved)
	})

	t.Run("rejection removes membership", func(t *testing.T) {
		store := &fakeGroupStore{}
		h := NewAddGroupMemberHandler(store, logger)

		req := requestWithPayload("project_group.add_member",
			map[string]interface{}{"group_id": float64(5), "user_id": float64(3)})
		require.NoError(t, h.OnRejection(context.Background(), req))
		assert.Equal(t, []int64{5, 3}, store.removed)
	})
}

// --- Assign Project Staff ---

type fakeStaffStore struct {
	projects map[int64]bool
	users    map[int64]bool
	upserted []int64
	deleted  []int64
}

func (f *fakeStaffStore) ProjectExists(_ context.Context, id int64) (bool, error) {
	return f.projects[id], nil
}

func (f *fakeStaffStore) UserExists(_ context.Context, id int64) (bool, error) {
	return f.users[id], nil
}

func (f *fakeStaffStore) UpsertProjectStaff(_ context.Context, projectID, positionID, userID int64) error {
	f.upserted = []int64{projectID, positionID, userID}
	return nil
}

func (f *fakeStaffStore) DeleteProjectStaff(_ context.Context, projectID, positionID, userID int64) error {
	f.deleted = []int64{projectID, positionID, userID}
	return nil
}

func TestAssignProjectStaffHandler(t *testing.T) {
	logger := zap.NewNop()
	payload := map[string]interface{}{
		"project_id": float64(10), "position_id": float64(2), "user_id": float64(33),
	}

	t.Run("approval upserts assignment", func(t *testing.T) {
		store := &fakeStaffStore{projects: map[int64]bool{10: true}, users: map[int64]bool{33: true}}
		h := NewAssignProjectStaffHandler(store, logger)

		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("project.staff.assign", payload)))
		assert.Equal(t, []int64{10, 2, 33}, store.upserted)
	})

	t.Run("missing project skips silently", func(t *testing.T) {
		store := &fakeStaffStore{projects: map[int64]bool{}, users: map[int64]bool{33: true}}
		h := NewAssignProjectStaffHandler(store, logger)

		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("project.staff.assign", payload)))
		assert.Nil(t, store.upserted)
	})

	t.Run("rejection deletes assignment", func(t *testing.T) {
		store := &fakeStaffStore{}
		h := NewAssignProjectStaffHandler(store, logger)

		require.NoError(t, h.OnRejection(context.Background(), requestWithPayload("project.staff.assign", payload)))
		assert.Equal(t, []int64{10, 2, 33}, store.deleted)
	})
}

// --- Create Proposal From Approval ---

type fakeProposalStore struct {
	period *domain.AcademicPeriod
	phase  *domain.Phase

	proposals     []*domain.Proposal
	projects      []*domain.Project
	createdPhases []*domain.Phase
}

func (f *fakeProposalStore) CreateProposal(_ context.Context, p *domain.Proposal) error {
	p.ID = int64(len(f.proposals) + 1)
	f.proposals = append(f.proposals, p)
	return nil
}

func (f *fakeProposalStore) ActivePeriod(_ context.Context, _ string, _ time.Time) (*domain.AcademicPeriod, error) {
	return f.period, nil
}

func (f *fakeProposalStore) FirstPhase(_ context.Context, _ int64) (*domain.Phase, error) {
	return f.phase, nil
}

func (f *fakeProposalStore) CreatePhase(_ context.Context, ph *domain.Phase) error {
	ph.ID = int64(len(f.createdPhases) + 100)
	f.createdPhases = append(f.createdPhases, ph)
	return nil
}

func (f *fakeProposalStore) CreateProject(_ context.Context, p *domain.Project) error {
	p.ID = int64(len(f.projects) + 1)
	f.projects = append(f.projects, p)
	return nil
}

func studentProposalPayload() map[string]interface{} {
	return map[string]interface{}{
		"proposal": map[string]interface{}{
			"title":     "Robotics Lab",
			"summary":   "autonomous navigation",
			"author_id": float64(42),
		},
		"origin": "student",
	}
}

func TestCreateProposalHandler(t *testing.T) {
	logger := zap.NewNop()

	t.Run("student origin creates proposal and project in first phase", func(t *testing.T) {
		store := &fakeProposalStore{
			period: &domain.AcademicPeriod{ID: 1, State: "active"},
			phase:  &domain.Phase{ID: 11, PeriodID: 1, Position: 1},
		}
		h := NewCreateProposalHandler(store, "active", logger)

		req := requestWithPayload("proposal.committee", studentProposalPayload())
		require.NoError(t, h.OnApproval(context.Background(), req))

		require.Len(t, store.proposals, 1)
		assert.Equal(t, "Robotics Lab", store.proposals[0].Title)
		assert.Equal(t, int64(42), store.proposals[0].AuthorID)

		require.Len(t, store.projects, 1)
		assert.Equal(t, int64(11), store.projects[0].PhaseID)
		assert.Equal(t, store.proposals[0].ID, *store.projects[0].ProposalID)
		assert.Empty(t, store.createdPhases, "existing phase must be reused")
	})

	t.Run("period without phases gets an initial phase", func(t *testing.T) {
		store := &fakeProposalStore{period: &domain.AcademicPeriod{ID: 2, State: "active"}}
		h := NewCreateProposalHandler(store, "active", logger)

		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("proposal.committee", studentProposalPayload())))
		require.Len(t, store.createdPhases, 1)
		assert.Equal(t, int64(2), store.createdPhases[0].PeriodID)
		require.Len(t, store.projects, 1)
		assert.Equal(t, store.createdPhases[0].ID, store.projects[0].PhaseID)
	})

	t.Run("no active period creates proposal without project", func(t *testing.T) {
		store := &fakeProposalStore{}
		h := NewCreateProposalHandler(store, "active", logger)

		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("proposal.committee", studentProposalPayload())))
		assert.Len(t, store.proposals, 1)
		assert.Empty(t, store.projects)
	})

	t.Run("non-student origin creates proposal only", func(t *testing.T) {
		store := &fakeProposalStore{
			period: &domain.AcademicPeriod{ID: 1, State: "active"},
			phase:  &domain.Phase{ID: 11},
		}
		h := NewCreateProposalHandler(store, "active", logger)

		payload := studentProposalPayload()
		payload["origin"] = "teacher"
		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("proposal.committee", payload)))
		assert.Len(t, store.proposals, 1)
		assert.Empty(t, store.projects)
	})

	t.Run("missing title is a silent no-op", func(t *testing.T) {
		store := &fakeProposalStore{}
		h := NewCreateProposalHandler(store, "active", logger)

		req := requestWithPayload("proposal.committee",
			map[string]interface{}{"proposal": map[string]interface{}{}, "origin": "student"})
		require.NoError(t, h.OnApproval(context.Background(), req))
		assert.Empty(t, store.proposals)
	})

	t.Run("author defaults to requester", func(t *testing.T) {
		store := &fakeProposalStore{}
		h := NewCreateProposalHandler(store, "active", logger)

		payload := map[string]interface{}{
			"proposal": map[string]interface{}{"title": "No Author"},
		}
		require.NoError(t, h.OnApproval(context.Background(), requestWithPayload("proposal.committee", payload)))
		require.Len(t, store.proposals, 1)
		assert.Equal(t, int64(100), store.proposals[0].AuthorID)
	})
}

// --- Forward Proposal To Committee ---

type fakeCreator struct {
	inputs []domain.CreateApprovalInput
}

func (f *fakeCreator) CreateRequest(_ context.Context, in domain.CreateApprovalInput) (*domain.ApprovalRequest, error) {
	f.inputs = append(f.inputs, in)
	req := &domain.ApprovalRequest{ID: "forwarded-1", Status: domain.StatusPending}
	for _, id := range in.RecipientIDs {
		req.Recipients = append(req.Recipients, &domain.Recipient{UserID: id})
	}
	return req, nil
}

func TestForwardToCommitteeHandler(t *testing.T) {
	logger := zap.NewNop()

	t.Run("approval spawns committee request", func(t *testing.T) {
		creator := &fakeCreator{}
		h := NewForwardToCommitteeHandler(creator, logger)

		req := requestWithPayload("proposal.student.director", map[string]interface{}{
			"proposal":                map[string]interface{}{"title": "Robotics Lab"},
			"committee_recipient_ids": []interface{}{float64(9), float64(10)},
		})
		require.NoError(t, h.OnApproval(context.Background(), req))

		require.Len(t, creator.inputs, 1)
		in := creator.inputs[0]
		assert.Equal(t, string(ActionProposalCommittee), in.ActionKey)
		assert.Equal(t, []int64{9, 10}, in.RecipientIDs)
		assert.Equal(t, int64(100), in.RequestedBy, "original requester carried forward")
		assert.Equal(t, "student", in.ActionPayload["origin"])
		assert.Equal(t, map[string]interface{}{"title": "Robotics Lab"}, in.ActionPayload["proposal"])
	})

	t.Run("missing recipients is a silent no-op", func(t *testing.T) {
		creator := &fakeCreator{}
		h := NewForwardToCommitteeHandler(creator, logger)

		req := requestWithPayload("proposal.student.director", map[string]interface{}{
			"proposal": map[string]interface{}{"title": "Robotics Lab"},
		})
		require.NoError(t, h.OnApproval(context.Background(), req))
		assert.Empty(t, creator.inputs)
	})

	t.Run("rejection does nothing", func(t *testing.T) {
		creator := &fakeCreator{}
		h := NewForwardToCommitteeHandler(creator, logger)

		req := requestWithPayload("proposal.student.director", map[string]interface{}{
			"proposal":                map[string]interface{}{"title": "Robotics Lab"},
			"committee_recipient_ids": []interface{}{float64(9)},
		})
		require.NoError(t, h.OnRejection(context.Background(), req))
		assert.Empty(t, creator.inputs)
	})
}
