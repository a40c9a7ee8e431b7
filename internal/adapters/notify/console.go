package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo una línea por tick. El mutex
// serializa los pollers concurrentes para que las líneas no se entremezclen.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// Notify imprime el sample en una línea compacta, con una segunda línea de
// detalle (libro, funding, frescura) en modo verbose.
func (c *Console) Notify(s domain.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.UnixMilli(s.TsMS).Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-10s a=%.6g b=%.6g spread=%+.6g z=%+.3f %s",
		now, s.Pair, s.PriceA, s.PriceB, s.Spread, s.Z, actionLabel(s))

	if s.Stale != nil && *s.Stale == 1 {
		sb.WriteString(" STALE")
	}

	if c.verbose {
		fmt.Fprintf(&sb, "\n  mean=%+.6g std=%.6g ema=%s dev=%s", s.Mean, s.Std,
			fnum(s.EMA, "%+.6g"), fnum(s.CenterDev, "%+.3f"))
		fmt.Fprintf(&sb, " | ob a=%s/%s b=%s/%s",
			fnum(s.BestBidA, "%.6g"), fnum(s.BestAskA, "%.6g"),
			fnum(s.BestBidB, "%.6g"), fnum(s.BestAskB, "%.6g"))
		if s.FrA != nil || s.FrB != nil {
			fmt.Fprintf(&sb, " | fr a=%s b=%s next=%s",
				fnum(s.FrA, "%.6f"), fnum(s.FrB, "%.6f"), countdownLabel(s.FrCountdownMS))
		}
		if s.Advice != nil {
			fmt.Fprintf(&sb, "\n  advice: %s (hl=%ss t_exit=%ss net=$%s)",
				*s.Advice, fnum(s.HalfLifeS, "%.1f"), fnum(s.TExitS, "%.1f"),
				fnum(s.NetFundingCycleUSD, "%.4f"))
		}
		fmt.Fprintf(&sb, " | lat=%sms skew=%sms",
			fnum(s.LatencyMS, "%.0f"), fnum(s.SkewMS, "%.0f"))
	}

	fmt.Fprintln(c.out, sb.String())
}

// PrintLatest imprime una tabla con el último sample conocido de cada par.
// Es la salida del modo -latest del monitor.
func (c *Console) PrintLatest(samples []domain.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(samples) == 0 {
		fmt.Fprintln(c.out, "no samples recorded yet")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Pair", "Time", "Price A", "Price B", "Spread", "Z", "EMA", "Action", "Stale")

	for _, s := range samples {
		stale := "-"
		if s.Stale != nil {
			stale = fmt.Sprintf("%d", *s.Stale)
		}
		table.Append(
			s.Pair,
			time.UnixMilli(s.TsMS).Format("01-02 15:04:05"),
			fmt.Sprintf("%.6g", s.PriceA),
			fmt.Sprintf("%.6g", s.PriceB),
			fmt.Sprintf("%+.6g", s.Spread),
			fmt.Sprintf("%+.3f", s.Z),
			fnum(s.EMA, "%+.6g"),
			actionLabel(s),
			stale,
		)
	}
	table.Render()
}

// --- helpers ---

func actionLabel(s domain.Sample) string {
	switch s.Action {
	case domain.ActionEnterShortALongB:
		return ">> SHORT A / LONG B"
	case domain.ActionEnterLongAShortB:
		return ">> LONG A / SHORT B"
	case domain.ActionExit:
		return "exit"
	default:
		return "hold"
	}
}

// fnum formatea un puntero opcional; "-" cuando falta.
func fnum(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func countdownLabel(ms *float64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	return d.Truncate(time.Second).String()
}
