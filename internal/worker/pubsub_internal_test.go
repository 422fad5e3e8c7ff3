package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

type stubEstimator struct{}

func (stubEstimator) RefreshSnapshot(context.Context) error { return nil }

func (stubEstimator) EstimateAt(_ context.Context, p geo.Point, _ interpolation.Options) (*groundwater.LiveEstimate, error) {
	return &groundwater.LiveEstimate{Point: p, Status: groundwater.StatusSafe}, nil
}

func TestPubSubHandler_HandleAckDecision(t *testing.T) {
	refresh := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Targets: []RefreshTarget{{Name: "Pune", Points: []geo.Point{healthCheckPoint}}},
		},
		Logger:    zerolog.Nop(),
		Estimator: stubEstimator{},
	})
	h := &PubSubHandler{
		dispatcher: NewDispatcher(nil, refresh, zerolog.Nop()),
		logger:     zerolog.Nop(),
	}

	tests := []struct {
		name string
		data string
		ack  bool
	}{
		{name: "success", data: `{"job_type":"refresh_estimates"}`, ack: true},
		{name: "malformed", data: `{`, ack: true},
		{name: "unknown job", data: `{"job_type":"compact"}`, ack: true},
		{name: "job failure", data: `{"job_type":"ingest_readings"}`, ack: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.handle(context.Background(), "msg-1", time.Now(), []byte(tt.data))
			assert.Equal(t, tt.ack, got)
		})
	}
}
