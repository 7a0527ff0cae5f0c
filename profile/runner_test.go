package profile_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/consanii/x-heep/board"
	"github.com/consanii/x-heep/internal/rig"
	"github.com/consanii/x-heep/profile"
)

func reference(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*13 + 7)
	}
	return b
}

func TestRunSweep(t *testing.T) {
	r, err := rig.New(board.Default(), rig.Options{PollBudget: 1 << 12})
	if err != nil {
		t.Fatal(err)
	}
	const maxLen = 48
	var delivered int
	runner, err := profile.NewRunner(r.Flash, r.Timer, profile.Config{
		Addr:      0x8000,
		MaxLen:    maxLen,
		Reference: reference(maxLen),
		OnIteration: func(it profile.Iteration) {
			delivered++
			if it.Len < 1 || it.Len > maxLen {
				t.Errorf("iteration callback saw length %d", it.Len)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	rep, err := runner.Run()
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalMismatches != 0 {
		t.Errorf("%d mismatches on a clean rig", rep.TotalMismatches)
	}
	if want := maxLen * len(profile.AllModes()); len(rep.Iterations) != want {
		t.Errorf("%d iterations, want %d", len(rep.Iterations), want)
	}
	if delivered != len(rep.Iterations) {
		t.Errorf("callback ran %d times for %d iterations", delivered, len(rep.Iterations))
	}
	if len(rep.Stats) != len(profile.AllModes()) {
		t.Errorf("%d stat rows, want %d", len(rep.Stats), len(profile.AllModes()))
	}
	var totalTicks uint64
	for _, st := range rep.Stats {
		totalTicks += st.TotalWrite + st.TotalRead
	}
	if totalTicks == 0 {
		t.Error("no ticks measured across the whole sweep")
	}
	// Four data lines move the same bytes in a quarter of the clocks; the
	// measured means have to reflect that.
	if rep.Stats[2].ReadMean >= rep.Stats[0].ReadMean {
		t.Errorf("quad read mean %.1f not below standard read mean %.1f",
			rep.Stats[2].ReadMean, rep.Stats[0].ReadMean)
	}
}

func TestRunAbortsOnDriverError(t *testing.T) {
	r, err := rig.New(board.Default(), rig.Options{PollBudget: 64})
	if err != nil {
		t.Fatal(err)
	}
	runner, err := profile.NewRunner(r.Flash, r.Timer, profile.Config{
		MaxLen:    16,
		Reference: reference(16),
	})
	if err != nil {
		t.Fatal(err)
	}
	r.SoC.FailCommandsAfter(20)
	if _, err := runner.Run(); !errors.Is(err, profile.ErrDriver) {
		t.Errorf("got %v, want %v", err, profile.ErrDriver)
	}
}

// recordingHandler keeps the contexts the runner's log calls hand to
// the handler chain.
type recordingHandler struct {
	records int
	badCtx  bool
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler            { return h }

func (h *recordingHandler) Handle(ctx context.Context, _ slog.Record) error {
	h.records++
	if ctx == nil {
		h.badCtx = true
	}
	return nil
}

func TestRunnerLogsThroughHandler(t *testing.T) {
	r, err := rig.New(board.Default(), rig.Options{PollBudget: 1 << 12})
	if err != nil {
		t.Fatal(err)
	}
	h := &recordingHandler{}
	runner, err := profile.NewRunner(r.Flash, r.Timer, profile.Config{
		MaxLen:    4,
		Modes:     []profile.Mode{{Quad: false, DMA: false}},
		Reference: reference(4),
		Logger:    slog.New(h),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(); err != nil {
		t.Fatal(err)
	}
	if h.records == 0 {
		t.Error("sweep produced no log records")
	}
	if h.badCtx {
		t.Error("log record delivered without a context")
	}
}

func TestNewRunnerValidation(t *testing.T) {
	r, err := rig.New(board.Default(), rig.Options{PollBudget: 1 << 12})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := profile.NewRunner(r.Flash, r.Timer, profile.Config{MaxLen: 0}); err == nil {
		t.Error("zero max length accepted")
	}
	if _, err := profile.NewRunner(r.Flash, r.Timer, profile.Config{MaxLen: 8, Reference: reference(4)}); err == nil {
		t.Error("short reference accepted")
	}
}
