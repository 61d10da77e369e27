package domain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingRequest(recipientIDs ...int64) *ApprovalRequest {
	req := &ApprovalRequest{
		ID:        "req-1",
		Title:     "test",
		ActionKey: "noop",
		Status:    StatusPending,
	}
	for i, id := range recipientIDs {
		req.Recipients = append(req.Recipients, &Recipient{
			ID:        string(rune('a' + i)),
			RequestID: req.ID,
			UserID:    id,
		})
	}
	return req
}

func TestQuorumThreshold(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{0, 1}, // пустой набор считается как один получатель
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
		{10, 6},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QuorumThreshold(tc.total), "total=%d", tc.total)
	}
}

func TestRecordDecision(t *testing.T) {
	now := time.Now()

	t.Run("sets decision and timestamp", func(t *testing.T) {
		req := newPendingRequest(1, 2)
		rec, err := req.RecordDecision(1, DecisionApproved, "  looks good  ", now)
		require.NoError(t, err)
		require.NotNil(t, rec.Decision)
		assert.Equal(t, DecisionApproved, *rec.Decision)
		assert.Equal(t, now, *rec.DecisionAt)
		assert.Equal(t, "looks good", *rec.Comment)
	})

	t.Run("empty comment normalized to absent", func(t *testing.T) {
		req := newPendingRequest(1)
		rec, err := req.RecordDecision(1, DecisionApproved, "   ", now)
		require.NoError(t, err)
		assert.Nil(t, rec.Comment)
	})

	t.Run("overlong comment truncated", func(t *testing.T) {
		req := newPendingRequest(1)
		rec, err := req.RecordDecision(1, DecisionApproved, strings.Repeat("x", MaxCommentLen+100), now)
		require.NoError(t, err)
		assert.Len(t, *rec.Comment, MaxCommentLen)
	})

	t.Run("truncation keeps multi-byte runes intact", func(t *testing.T) {
		req := newPendingRequest(1)
		rec, err := req.RecordDecision(1, DecisionApproved, strings.Repeat("ф", MaxCommentLen+1), now)
		require.NoError(t, err)
		assert.Equal(t, MaxCommentLen, utf8.RuneCountInString(*rec.Comment))
		assert.True(t, utf8.ValidString(*rec.Comment))
	})

	t.Run("unknown user rejected", func(t *testing.T) {
		req := newPendingRequest(1, 2)
		_, err := req.RecordDecision(99, DecisionApproved, "", now)
		assert.ErrorIs(t, err, ErrNotRecipient)
	})

	t.Run("second decision from same recipient rejected", func(t *testing.T) {
		req := newPendingRequest(1, 2)
		_, err := req.RecordDecision(1, DecisionApproved, "", now)
		require.NoError(t, err)
		_, err = req.RecordDecision(1, DecisionRejected, "", now)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
		// Первое решение осталось нетронутым
		assert.Equal(t, DecisionApproved, *req.Recipients[0].Decision)
	})

	t.Run("resolved request rejects any decision", func(t *testing.T) {
		req := newPendingRequest(1, 2)
		require.NoError(t, req.Resolve(DecisionApproved, now))
		_, err := req.RecordDecision(2, DecisionApproved, "", now)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		assert.Nil(t, req.Recipients[1].Decision)
	})
}

func TestEvaluateQuorum(t *testing.T) {
	now := time.Now()

	t.Run("three recipients resolve at two approvals", func(t *testing.T) {
		req := newPendingRequest(1, 2, 3)

		_, err := req.RecordDecision(1, DecisionApproved, "", now)
		require.NoError(t, err)
		_, ok := req.EvaluateQuorum()
		assert.False(t, ok, "one approval of three must not reach quorum")

		_, err = req.RecordDecision(2, DecisionApproved, "", now)
		require.NoError(t, err)
		final, ok := req.EvaluateQuorum()
		require.True(t, ok)
		assert.Equal(t, DecisionApproved, final)
	})

	t.Run("single recipient resolves immediately", func(t *testing.T) {
		req := newPendingRequest(7)
		_, err := req.RecordDecision(7, DecisionRejected, "", now)
		require.NoError(t, err)
		final, ok := req.EvaluateQuorum()
		require.True(t, ok)
		assert.Equal(t, DecisionRejected, final)
	})

	t.Run("split vote stays pending", func(t *testing.T) {
		req := newPendingRequest(1, 2)
		_, err := req.RecordDecision(1, DecisionApproved, "", now)
		require.NoError(t, err)
		_, ok := req.EvaluateQuorum()
		assert.False(t, ok, "two recipients need both votes on one side")
	})
}

func TestResolveIsOneWay(t *testing.T) {
	now := time.Now()
	req := newPendingRequest(1)

	require.NoError(t, req.Resolve(DecisionApproved, now))
	assert.Equal(t, StatusApproved, req.Status)
	assert.Equal(t, DecisionApproved, *req.ResolvedDecision)
	assert.Equal(t, now, *req.ResolvedAt)

	// Повторная резолюция невозможна
	err := req.Resolve(DecisionRejected, now)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, StatusApproved, req.Status)
}

func TestDedupeRecipientIDs(t *testing.T) {
	assert.Equal(t, []int64{4, 5}, DedupeRecipientIDs([]int64{4, 4, 5}))
	assert.Equal(t, []int64{1, 2, 3}, DedupeRecipientIDs([]int64{1, 2, 1, 3, 2}))
	assert.Empty(t, DedupeRecipientIDs(nil))
}
