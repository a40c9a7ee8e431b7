package notify_test

import (
	"bytes"
	"testing"

	"github.com/alejandrodnm/spreadwatch/internal/adapters/notify"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func makeSample(pair string, z float64, action string) domain.Sample {
	return domain.Sample{
		Pair:   pair,
		TsMS:   1_700_000_000_000,
		PriceA: 100.25,
		PriceB: 99.75,
		Spread: 0.5,
		Z:      z,
		Mean:   0.3,
		Std:    0.1,
		EMA:    domain.Float64(0.42),
		Action: action,
		Stale:  domain.Int(0),
	}
}

func TestConsole_Notify_CompactLine(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.Notify(makeSample("BTCUSDT", 2.1, domain.ActionEnterShortALongB))

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "z=+2.100")
	assert.Contains(t, out, "SHORT A / LONG B")
	assert.NotContains(t, out, "mean=", "sin verbose no hay segunda línea")
}

func TestConsole_Notify_StaleFlag(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	s := makeSample("ETHUSDT", 0.1, domain.ActionHold)
	s.Stale = domain.Int(1)
	n.Notify(s)

	assert.Contains(t, buf.String(), "STALE")
}

func TestConsole_Notify_VerboseIncludesAdvice(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	s := makeSample("BTCUSDT", -2.3, domain.ActionEnterLongAShortB)
	s.FrA = domain.Float64(0.0001)
	s.FrB = domain.Float64(0.0002)
	s.FrCountdownMS = domain.Float64(3_600_000)
	s.HalfLifeS = domain.Float64(120)
	s.TExitS = domain.Float64(600)
	s.Advice = domain.String("convergence expected before next funding; funding avoidable")
	s.NetFundingCycleUSD = domain.Float64(0.1)
	n.Notify(s)

	out := buf.String()
	assert.Contains(t, out, "fr a=0.000100 b=0.000200")
	assert.Contains(t, out, "next=1h0m0s")
	assert.Contains(t, out, "advice: convergence expected")
}

func TestConsole_PrintLatest(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintLatest([]domain.Sample{
		makeSample("BTCUSDT", 1.0, domain.ActionHold),
		makeSample("ETHUSDT", -0.2, domain.ActionExit),
	})

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "ETHUSDT")
	assert.Contains(t, out, "Spread")
}

func TestConsole_PrintLatest_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	n.PrintLatest(nil)
	assert.Contains(t, buf.String(), "no samples recorded yet")
}
