package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/z2l-emu/z2l/rvgo/clock"
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

// Result summarizes a quick run.
type Result struct {
	Steps  uint64
	Missed uint64
	Trap   *isa.Trap
}

// Stopped reports whether the program ended itself with ecall or ebreak.
func (r *Result) Stopped() bool {
	return r.Trap != nil && (r.Trap.Kind == isa.EnvironmentCall || r.Trap.Kind == isa.Breakpoint)
}

// quickRun steps m until a trap, the step budget, or cancellation.
func quickRun(ctx context.Context, m *machine, pacer clock.Pacer, maxSteps, infoEvery uint64) (*Result, error) {
	e := m.env
	res := &Result{}
	start := time.Now()
	pacer.Reset()
	for maxSteps == 0 || res.Steps < maxSteps {
		if res.Steps%100 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		missed, err := pacer.Wait(ctx)
		if err != nil {
			return res, err
		}
		res.Missed += missed

		r, err := e.Step()
		if err != nil {
			var trap *isa.Trap
			if !errors.As(err, &trap) {
				return res, err
			}
			res.Trap = trap
			return res, nil
		}
		res.Steps++

		if infoEvery != 0 && res.Steps%infoEvery == 0 {
			delta := time.Since(start)
			m.log.Info("processing",
				"step", res.Steps,
				"pc", riscv.HexU32(r.NextPC),
				"insn", r.Instruction,
				"ips", float64(res.Steps)/(float64(delta)/float64(time.Second)),
				"missed", res.Missed,
				"mem", e.MemoryUsage(),
				"name", m.symbol(r.NextPC),
			)
		}
	}
	return res, nil
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}
	if ctx.String(ClockFlag.Name) == "manual" {
		return errors.New("manual clock: use the monitor command to step interactively")
	}
	pacer, err := clock.ParsePacer(ctx.String(ClockFlag.Name))
	if err != nil {
		return err
	}
	m, err := newMachine(ctx)
	if err != nil {
		return err
	}

	res, err := quickRun(ctx.Context, m, pacer, ctx.Uint64(MaxStepsFlag.Name), ctx.Uint64(InfoEveryFlag.Name))
	if err != nil {
		return err
	}
	snap := m.env.Inspect()
	m.log.Info("finished",
		"steps", res.Steps,
		"cycle", snap.Cycle,
		"pc", riscv.HexU32(snap.PC),
		"a0", riscv.HexU32(snap.Registers[10]),
		"missed", res.Missed,
		"hash", m.env.StateHash(),
	)
	if out := ctx.Path(OutputFlag.Name); out != "" {
		if err := saveState(m.env, out); err != nil {
			return err
		}
	}
	if res.Trap != nil && !res.Stopped() {
		return fmt.Errorf("program faulted after %d steps: %w", res.Steps, res.Trap)
	}
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Run a ROM image until it traps or the step budget runs out",
	Description: "Run a ROM image non-interactively. ecall/ebreak (with --trap-ecall) end the run successfully, faults exit with an error.",
	Action:      Run,
	Flags: append([]cli.Flag{
		MaxStepsFlag,
		ClockFlag,
		OutputFlag,
		InfoEveryFlag,
		PProfCPUFlag,
	}, machineFlags...),
}
