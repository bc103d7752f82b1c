// Package lanternaux provides helpers for hosts getting started with lantern:
// error reporters, a statistics overlay and palette texture generation.
package lanternaux

import (
	"fmt"
	"log/slog"

	"github.com/soypat/lantern"
	"github.com/soypat/lantern/glbuild"
	"github.com/soypat/lantern/gleffect"
)

// LogReporter reports errors to a logger. A nil Logger uses [lantern.Logger].
type LogReporter struct {
	Logger *slog.Logger
}

var _ gleffect.Reporter = LogReporter{}

func (lr LogReporter) Report(title string, err error) {
	log := lr.Logger
	if log == nil {
		log = lantern.Logger()
	}
	log.Error(title, slog.String("err", err.Error()))
}

// DialogReporter presents errors in a blocking message box and forwards
// them to Fallback. Without CGo only Fallback is used.
type DialogReporter struct {
	Fallback gleffect.Reporter
}

var _ gleffect.Reporter = DialogReporter{}

func (dr DialogReporter) Report(title string, err error) {
	if dr.Fallback != nil {
		dr.Fallback.Report(title, err)
	}
	showError(title, err)
}

// NewReporter returns the reporter selected by cfg.ShowDialogs.
func NewReporter(cfg lantern.Config) gleffect.Reporter {
	if cfg.ShowDialogs {
		return DialogReporter{Fallback: LogReporter{}}
	}
	return LogReporter{}
}

// StatsLines formats the state of ctx as human readable lines.
func StatsLines(ctx *lantern.Context) []string {
	vs := ctx.Stats()
	rt := ctx.Runtime()
	rs := rt.Stats()
	state := "shading"
	if !ctx.Loaded() {
		state = "unshaded"
	}
	return []string{
		fmt.Sprintf("%s %s/%s", state, ctx.Config().Program, rt.Mode()),
		fmt.Sprintf("flags %02x [%s]", uint32(ctx.Flags().Sanitize()), flagsOrNone(ctx.Flags().Sanitize())),
		fmt.Sprintf("programs %d pipelines %d", vs.Programs, vs.Pipelines),
		fmt.Sprintf("hits %d loads %d compiles %d failures %d", vs.Hits, vs.Loads, vs.Compiles, vs.Failures),
		fmt.Sprintf("starts %d fallbacks %d swaps %d commits %d", rs.Starts, rs.Fallbacks, rs.Swaps, rs.Commits),
	}
}

func flagsOrNone(f glbuild.Flags) string {
	if f == 0 {
		return "none"
	}
	return f.String()
}
