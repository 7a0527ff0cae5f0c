package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/consanii/x-heep/rvtimer"
	"github.com/consanii/x-heep/w25q"
)

// ErrDriver wraps a flash driver failure. Driver failures abort the run
// immediately; there is no transient/permanent distinction and no retry.
var ErrDriver = errors.New("profile: flash driver error")

type Config struct {
	// Addr is the flash byte address every iteration writes to and reads
	// back from.
	Addr uint32
	// MaxLen is the largest transfer length; iterations sweep 1..MaxLen.
	MaxLen int
	Modes  []Mode
	Hart   int
	// Reference must hold at least MaxLen bytes of known data.
	Reference []byte
	Logger    *slog.Logger
	// OnIteration, when set, is called with each completed iteration as
	// the sweep progresses.
	OnIteration func(Iteration)
}

// Iteration is the measurement of one transfer length in one mode.
type Iteration struct {
	Mode       Mode
	Len        int
	WriteTicks uint64
	ReadTicks  uint64
	Mismatches int
}

// ModeStats summarize one mode's tick samples across all lengths.
type ModeStats struct {
	Mode         Mode
	WriteMean    float64
	WriteStdDev  float64
	ReadMean     float64
	ReadStdDev   float64
	TotalWrite   uint64
	TotalRead    uint64
	SampleLenSum int
}

// Report is the outcome of a full profiling run.
type Report struct {
	Iterations      []Iteration
	Stats           []ModeStats
	TotalMismatches int
}

// Runner sweeps transfer lengths across the selected modes, timing each
// write and read and verifying every read-back.
type Runner struct {
	flash *w25q.Flash
	timer *rvtimer.Timer
	cfg   Config
}

func NewRunner(fl *w25q.Flash, tm *rvtimer.Timer, cfg Config) (*Runner, error) {
	if cfg.MaxLen < 1 {
		return nil, fmt.Errorf("profile: max length %d", cfg.MaxLen)
	}
	if len(cfg.Reference) < cfg.MaxLen {
		return nil, fmt.Errorf("profile: reference holds %d bytes, need %d", len(cfg.Reference), cfg.MaxLen)
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = AllModes()
	}
	return &Runner{flash: fl, timer: tm, cfg: cfg}, nil
}

// Run executes the sweep. A driver error aborts immediately with the
// partial report. Verification mismatches are logged and counted but do
// not abort: timing data keeps being collected even over corrupted
// content.
func (r *Runner) Run() (Report, error) {
	var rep Report
	scratch := make([]byte, r.cfg.MaxLen)
	for _, mode := range r.cfg.Modes {
		r.log(slog.LevelInfo, "profile sweep start", slog.String("mode", mode.String()))
		var writeTicks, readTicks []float64
		var st ModeStats
		st.Mode = mode
		for length := 1; length <= r.cfg.MaxLen; length++ {
			w, err := TimedWrite(r.flash, r.timer, r.cfg.Hart, mode, r.cfg.Addr, r.cfg.Reference[:length])
			if err != nil {
				return rep, fmt.Errorf("%w: len %d: %v", ErrDriver, length, err)
			}
			rd, err := TimedRead(r.flash, r.timer, r.cfg.Hart, mode, r.cfg.Addr, scratch[:length])
			if err != nil {
				return rep, fmt.Errorf("%w: len %d: %v", ErrDriver, length, err)
			}

			res := Verify(r.cfg.Reference, scratch, length)
			for _, mm := range res.Mismatches {
				r.log(slog.LevelError, "verification mismatch",
					slog.Int("iteration", length),
					slog.Int("index", mm.Word),
					slog.String("got", fmt.Sprintf("%#x", mm.Got)),
					slog.String("want", fmt.Sprintf("%#x", mm.Want)))
			}
			rep.TotalMismatches += res.Count()

			it := Iteration{
				Mode:       mode,
				Len:        length,
				WriteTicks: w.Ticks,
				ReadTicks:  rd.Ticks,
				Mismatches: res.Count(),
			}
			rep.Iterations = append(rep.Iterations, it)
			writeTicks = append(writeTicks, float64(w.Ticks))
			readTicks = append(readTicks, float64(rd.Ticks))
			st.TotalWrite += w.Ticks
			st.TotalRead += rd.Ticks
			st.SampleLenSum += length
			r.log(slog.LevelDebug, "iteration",
				slog.Int("len", length),
				slog.Uint64("W", w.Ticks),
				slog.Uint64("R", rd.Ticks))
			if r.cfg.OnIteration != nil {
				r.cfg.OnIteration(it)
			}
		}
		st.WriteMean = stat.Mean(writeTicks, nil)
		st.WriteStdDev = stat.StdDev(writeTicks, nil)
		st.ReadMean = stat.Mean(readTicks, nil)
		st.ReadStdDev = stat.StdDev(readTicks, nil)
		rep.Stats = append(rep.Stats, st)
	}
	return rep, nil
}

func (r *Runner) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
