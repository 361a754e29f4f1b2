package triggers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/puffless/engage/internal/catalog"
	"github.com/puffless/engage/internal/gateway"
	"github.com/puffless/engage/internal/store"
	"github.com/puffless/engage/pkg/logger"
)

// usdLadder is the canonical money-saved ladder; per-currency ladders are
// derived from it through the static exchange table.
var usdLadder = []float64{25, 50, 100, 250, 500, 1000}

// exchangeRates converts USD into the user's display currency. The table is
// deliberately static: milestone boundaries must not drift with market rates.
var exchangeRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"CAD": 1.36,
	"AUD": 1.52,
	"PLN": 4.0,
	"UAH": 38.0,
	"KZT": 450.0,
	"RUB": 90.0,
	"INR": 83.0,
	"BRL": 5.0,
	"JPY": 150.0,
}

const moneyMarkerKey = "milestone:money:notified"

// MoneyMilestone announces money-saved thresholds in the user's currency.
type MoneyMilestone struct {
	base
}

// NewMoneyMilestone constructs the money-saved milestone module.
func NewMoneyMilestone(st store.Store, gw *gateway.Gateway, cat *catalog.Catalog) (*MoneyMilestone, error) {
	if st == nil || gw == nil || cat == nil {
		return nil, errors.New("milestone money: store, gateway and catalog are required")
	}

	return &MoneyMilestone{
		base: base{
			store: st,
			gw:    gw,
			cat:   cat,
			log:   logger.WithModule("triggers.milestone_money"),
		},
	}, nil
}

// Ladder returns the milestone amounts for the supplied currency, rounded to
// whole units and strictly increasing. Unknown currencies fall back to USD.
func Ladder(currency string) []int64 {
	rate, ok := exchangeRates[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok || rate <= 0 {
		rate = 1
	}

	ladder := make([]int64, 0, len(usdLadder))
	prev := int64(0)
	for _, usd := range usdLadder {
		amount := int64(math.Round(usd * rate))
		if amount <= prev {
			amount = prev + 1
		}
		ladder = append(ladder, amount)
		prev = amount
	}
	return ladder
}

// Check fires a notification for every currency-ladder rung newly covered by
// the total amount saved, then marks it notified.
func (m *MoneyMilestone) Check(ctx context.Context, saved float64, currency string) ([]int64, error) {
	if !m.gw.Enabled(ctx) {
		return nil, nil
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}

	marker := m.loadMarker(ctx, moneyMarkerKey)

	var announced []int64
	for _, rung := range Ladder(currency) {
		if saved < float64(rung) || marker.Contains(float64(rung)) {
			continue
		}

		msg := m.cat.Pick(catalog.TriggerMilestoneMoney, catalog.SeverityCelebration)
		_, err := m.gw.ScheduleImmediate(ctx, gateway.Input{
			Tag:      TagMilestoneMoney,
			Title:    render(msg.Title, currency, rung),
			Body:     render(msg.Body, currency, rung),
			Severity: string(catalog.SeverityCelebration),
			Payload:  map[string]any{"threshold": rung, "currency": currency},
		})
		if err := m.tolerate(err); err != nil {
			return announced, fmt.Errorf("milestone money: notify %d: %w", rung, err)
		}

		marker.Add(float64(rung))
		announced = append(announced, rung)
	}

	if len(announced) == 0 {
		return nil, nil
	}

	if err := m.saveMarker(ctx, moneyMarkerKey, marker); err != nil {
		m.log.Warn("persist money marker failed", zap.Error(err))
	}
	return announced, nil
}

// Reset clears the notified set on an explicit plan restart.
func (m *MoneyMilestone) Reset(ctx context.Context) error {
	return m.store.Remove(ctx, moneyMarkerKey)
}
