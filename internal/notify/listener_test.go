package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

func TestParseSignal(t *testing.T) {
	sig, ok := ParseSignal("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d:APPROVED")
	require.True(t, ok)
	assert.Equal(t, "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", sig.RequestID)
	assert.Equal(t, domain.StatusApproved, sig.Status)

	_, ok = ParseSignal("req-1:REJECTED")
	assert.True(t, ok)

	for _, bad := range []string{"", "no-separator", ":APPROVED", "req-1:", "req-1:PENDING"} {
		_, ok := ParseSignal(bad)
		assert.False(t, ok, "payload %q", bad)
	}
}

type captureSink struct {
	signals []ResolutionSignal
}

func (s *captureSink) Notify(_ context.Context, sig ResolutionSignal) {
	s.signals = append(s.signals, sig)
}

func TestListenerHandle(t *testing.T) {
	sink := &captureSink{}
	l := NewListener(nil, nil, zap.NewNop(), sink)

	sig, ok := ParseSignal("req-1:REJECTED")
	require.True(t, ok)
	l.handle(context.Background(), sig)

	require.Len(t, sink.signals, 1)
	assert.Equal(t, "req-1", sink.signals[0].RequestID)

	status, seen := l.Resolved("req-1")
	require.True(t, seen)
	assert.Equal(t, domain.StatusRejected, status)

	_, seen = l.Resolved("ghost")
	assert.False(t, seen)
}
