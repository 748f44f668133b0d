package usecase

import (
	"context"
	"testing"
	"time"

	"OptionsOracle/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteOpensPositionAfterAck(t *testing.T) {
	h := newHarness(t)
	ev := h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))

	require.NotNil(t, ev)
	assert.Equal(t, models.TradeEntry, ev.Kind)
	assert.Equal(t, "NIFTY09JAN2521950CE", ev.Symbol)
	assert.Equal(t, 75, ev.Qty)
	assert.Equal(t, 21980.0, ev.StopLoss)
	assert.Equal(t, 22055.0, ev.Target)

	pos := h.exec.Position()
	assert.True(t, pos.Active)
	assert.Equal(t, models.SideCE, pos.Side)
	assert.Equal(t, 1, h.exec.Risk().TradeCount)

	require.Len(t, h.armer.exits, 1)
	exit := h.armer.exits[0]
	assert.Equal(t, ev.OrderID, exit.ParentOrderID)
	assert.Equal(t, "26000", exit.UnderlyingToken)
	assert.Equal(t, 21980.0, exit.UnderlyingStop)
	assert.Equal(t, 22055.0, exit.UnderlyingTarget)
	assert.Zero(t, exit.StopLoss, "no premium levels without an option price")
	assert.Zero(t, exit.Target)
	assert.Equal(t, []string{"filled"}, h.metrics.orders)
}

func TestProtectiveExitUsesPremiumLevels(t *testing.T) {
	h := newHarness(t)
	m := marketAt(midday, 22010)
	m.OptionLtp = 120
	ev := h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), m)
	require.NotNil(t, ev)
	require.Equal(t, models.TradeEntry, ev.Kind)

	require.Len(t, h.armer.exits, 1)
	exit := h.armer.exits[0]
	assert.Equal(t, "NIFTY09JAN2521950CE", exit.Instrument.Symbol)
	assert.InDelta(t, 108.0, exit.StopLoss, 1e-9)
	assert.InDelta(t, 138.0, exit.Target, 1e-9)
	assert.Less(t, exit.StopLoss, m.OptionLtp)
	assert.Greater(t, exit.Target, m.OptionLtp)
	assert.Equal(t, 21980.0, exit.UnderlyingStop)
	assert.Equal(t, 22055.0, exit.UnderlyingTarget)
}

func TestExitAllClosesPastBreachedLossLimit(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))
	require.True(t, h.exec.Position().Active)

	h.exec.SetDailyPnl(-400000)
	require.True(t, h.exec.Risk().CircuitBreaker)

	exitAll := models.ExitAll{Meta: models.Meta{Confidence: 72, Timestamp: midday}}
	ev := h.exec.Execute(context.Background(), exitAll, marketAt(midday, 22000))
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeExitAll, ev.Kind)
	assert.False(t, h.exec.Position().Active)
	assert.Empty(t, h.metrics.rejections)
	assert.Equal(t, []string{"BUY", "SELL"}, h.broker.transactions())
	assert.InDelta(t, -400750, h.exec.Risk().DailyPnl, 1e-9)
}

func TestExitAllClosesAfterMarketHours(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))

	late := time.Date(2025, 1, 8, 16, 0, 0, 0, ist)
	ev := h.exec.Execute(context.Background(), models.ExitAll{Meta: models.Meta{Confidence: 10, Timestamp: late}}, marketAt(late, 22030))
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeExitAll, ev.Kind)
	assert.False(t, h.exec.Position().Active)

	assert.Nil(t, h.exec.Execute(context.Background(), models.ExitAll{Meta: models.Meta{Confidence: 72, Timestamp: late}}, marketAt(late, 22030)),
		"nothing to close")
}

func TestExecuteLeavesStateOnOrderFailure(t *testing.T) {
	h := newHarness(t)
	h.broker.submitErr = errGateway

	ev := h.exec.Execute(context.Background(), trade(models.SidePE, 72, midday), marketAt(midday, 22010))
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeFailed, ev.Kind)
	assert.Contains(t, ev.Reason, "gateway timeout")
	assert.False(t, h.exec.Position().Active)
	assert.Equal(t, 0, h.exec.Risk().TradeCount)
	assert.Empty(t, h.armer.exits)
}

func TestExecuteJournalsRejection(t *testing.T) {
	h := newHarness(t)
	ev := h.exec.Execute(context.Background(), trade(models.SideCE, 40, midday), marketAt(midday, 22010))

	require.NotNil(t, ev)
	assert.Equal(t, models.TradeRejected, ev.Kind)
	assert.Equal(t, 1, ev.FailedStep)
	assert.Equal(t, "ai_gating", ev.Gate)
	assert.Equal(t, []string{"ai_gating"}, h.metrics.rejections)
	assert.Empty(t, h.broker.transactions())
}

func TestExecuteIgnoresHold(t *testing.T) {
	h := newHarness(t)
	assert.Nil(t, h.exec.Execute(context.Background(), models.Hold{Meta: models.Meta{Confidence: 99, Timestamp: midday}}, marketAt(midday, 22010)))
	assert.Empty(t, h.events.tradeKinds())
}

func TestSecondEntryHitsPositionLimit(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))
	ev := h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))
	assert.Equal(t, models.TradeRejected, ev.Kind)
	assert.Equal(t, 4, ev.FailedStep)
}

func TestManageClosesAtTarget(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))

	assert.Nil(t, h.exec.Manage(context.Background(), 22020, midday))
	ev := h.exec.Manage(context.Background(), 22060, midday)
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeExit, ev.Kind)
	assert.Equal(t, "target", ev.Reason)
	assert.InDelta(t, 3750, ev.Pnl, 1e-9)
	assert.InDelta(t, 3750, h.exec.Risk().DailyPnl, 1e-9)
	assert.False(t, h.exec.Position().Active)
	assert.Equal(t, []string{"BUY", "SELL"}, h.broker.transactions())
}

func TestExitKeepsPositionWhenSellFails(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))
	h.broker.sellErr = errGateway

	ev := h.exec.Manage(context.Background(), 21900, midday)
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeFailed, ev.Kind)
	assert.True(t, h.exec.Position().Active)

	h.broker.sellErr = nil
	ev = h.exec.Manage(context.Background(), 21900, midday)
	assert.Equal(t, "stop_loss", ev.Reason)
	assert.False(t, h.exec.Position().Active)
}

func TestReverseFlipsSide(t *testing.T) {
	h := newHarness(t)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))

	rev := models.Reverse{Meta: models.Meta{Confidence: 72, Timestamp: midday}, To: models.SidePE}
	ev := h.exec.Execute(context.Background(), rev, marketAt(midday, 22000))
	require.NotNil(t, ev)
	assert.Equal(t, models.TradeEntry, ev.Kind)
	assert.Equal(t, models.SidePE, h.exec.Position().Side)
	assert.Equal(t, []string{"BUY", "SELL", "BUY"}, h.broker.transactions())
	assert.Equal(t, []models.TradeEventKind{models.TradeEntry, models.TradeExit, models.TradeEntry}, h.events.tradeKinds())
	assert.Equal(t, 2, h.exec.Risk().TradeCount)
}

func TestForceExitAndPnlOverride(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec.ForceExit(context.Background(), 22000, midday)
	assert.ErrorIs(t, err, ErrNoPosition)

	h.exec.SetDailyPnl(-1000)
	h.exec.Execute(context.Background(), trade(models.SideCE, 72, midday), marketAt(midday, 22010))
	ev, err := h.exec.ForceExit(context.Background(), 22030, midday)
	require.NoError(t, err)
	assert.Equal(t, models.TradeExitAll, ev.Kind)
	assert.InDelta(t, 500, h.exec.Risk().DailyPnl, 1e-9)

	h.exec.ResetDay()
	assert.Equal(t, 0.0, h.exec.Risk().DailyPnl)
	assert.Equal(t, 0, h.exec.Risk().TradeCount)
}
