package triggers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

// PercentLadder is the fixed plan-completion ladder.
var PercentLadder = []float64{10, 25, 50, 75, 100}

const percentMarkerKey = "milestone:percent:notified"

// PercentMilestone congratulates the user as plan-completion thresholds are
// crossed. Each rung fires at most once, even across restarts.
type PercentMilestone struct {
	base
}

// NewPercentMilestone constructs the plan-completion milestone module.
func NewPercentMilestone(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*PercentMilestone, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("milestone percent: store, gateway and catalog are required")
	}

	return &PercentMilestone{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.milestone_percent"),
		},
	}, nil
}

// Check fires a notification for every ladder rung newly covered by the
// supplied completion percentage, then marks it notified. Returns the rungs
// announced by this call.
func (m *PercentMilestone) Check(ctx context.Context, percent float64) ([]float64, error) {
	if !m.gw.Enabled(ctx) {
		return nil, nil
	}

	marker := m.loadMarker(ctx, percentMarkerKey)

	var announced []float64
	for _, rung := range PercentLadder {
		if percent < rung || marker.Contains(rung) {
			continue
		}

		msg := m.cat.Pick(catalog.TriggerMilestonePercent, catalog.SeverityCelebration)
		_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
			Tag:      TagMilestonePercent,
			Title:    render(msg.Title, int(rung)),
			Body:     render(msg.Body, int(rung)),
			Severity: string(catalog.SeverityCelebration),
			Payload:  map[string]any{"threshold": rung},
		})
		if err := m.tolerate(err); err != nil {
			return announced, fmt.Errorf("milestone percent: notify %v: %w", rung, err)
		}

		marker.Add(rung)
		announced = append(announced, rung)
	}

	if len(announced) == 0 {
		return nil, nil
	}

	if err := m.saveMarker(ctx, percentMarkerKey, marker); err != nil {
		// The notification went out; losing the marker only risks a repeat.
		m.log.Warn("persist percent marker failed", zap.Error(err))
	}
	return announced, nil
}

// Reset clears the notified set. Only an explicit plan restart calls this.
func (m *PercentMilestone) Reset(ctx context.Context) error {
	return m.store.Remove(ctx, percentMarkerKey)
}
