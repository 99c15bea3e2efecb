package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
)

type recordingAggregator struct {
	mu    sync.Mutex
	calls []evidence.AggregateRequest
	fail  map[string]bool
}

func (r *recordingAggregator) Aggregate(_ context.Context, req evidence.AggregateRequest) (evidence.EvidencePack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.fail[req.Region] {
		return evidence.EvidencePack{}, errors.New("all sources unavailable")
	}
	return evidence.EvidencePack{Profile: req.Profile}, nil
}

func (r *recordingAggregator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var profiles = []evidence.Profile{
	{Region: "Andong-si", Crop: "apple", Stage: "flowering"},
	{Region: "Gimcheon-si", Crop: "tomato", Stage: "fruiting"},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	agg := &recordingAggregator{fail: map[string]bool{"Gimcheon-si": true}}
	s := New(profiles, time.Hour, agg, quietLogger())

	ok := s.RunOnce(context.Background())
	assert.Equal(t, 1, ok)
	require.Len(t, agg.calls, 2)
	for _, call := range agg.calls {
		assert.False(t, call.Demo)
	}
}

func TestStart_DisabledWithoutInterval(t *testing.T) {
	agg := &recordingAggregator{}
	s := New(profiles, 0, agg, quietLogger())
	require.NoError(t, s.Start())
	s.Stop()
	assert.Zero(t, agg.count())
}

func TestStart_RunsImmediately(t *testing.T) {
	agg := &recordingAggregator{}
	s := New(profiles, time.Hour, agg, quietLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool { return agg.count() == len(profiles) }, 2*time.Second, 10*time.Millisecond)
}
