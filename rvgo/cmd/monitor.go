package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/z2l-emu/z2l/rvgo/clock"
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/riscv"
)

const (
	defaultDumpLen  = 64
	defaultDisasm   = 8
	defaultGoBudget = 10_000_000
)

// Command is one parsed monitor input line.
type Command struct {
	Name string
	Args []string
}

func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return Command{}
	}
	parts := strings.Fields(input)
	return Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// ParseAddress parses a monitor address in various formats:
// $hex, 0xhex, bare hex, #decimal
func ParseAddress(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	base := 16
	switch {
	case strings.HasPrefix(s, "#"):
		s, base = s[1:], 10
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 32)
	return uint32(v), err == nil
}

// Monitor is the interactive front end: it steps, inspects and snapshots one machine.
type Monitor struct {
	m     *machine
	out   io.Writer
	pacer clock.Pacer

	breakpoints map[uint32]struct{}
	// budget bounds a single "g" without an explicit count
	budget uint64

	mu sync.Mutex
	// stop cancels the "g" in progress, nil at the prompt
	stop context.CancelFunc
}

func NewMonitor(m *machine, out io.Writer, pacer clock.Pacer, budget uint64) *Monitor {
	if budget == 0 {
		budget = defaultGoBudget
	}
	return &Monitor{
		m:           m,
		out:         out,
		pacer:       pacer,
		breakpoints: make(map[uint32]struct{}),
		budget:      budget,
	}
}

var errQuit = errors.New("quit")

func (mon *Monitor) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(mon.out, format, args...)
}

// address resolves a symbol name or a numeric address.
func (mon *Monitor) address(s string) (uint32, error) {
	if mon.m.syms != nil {
		if addr, ok := mon.m.syms.Lookup(s); ok {
			return addr, nil
		}
	}
	if addr, ok := ParseAddress(s); ok {
		return addr, nil
	}
	return 0, fmt.Errorf("invalid address %q", s)
}

func parseCount(args []string, i int, def uint64) (uint64, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid count %q", args[i])
	}
	return n, nil
}

// Execute runs one command line. It returns errQuit when the session should end;
// other errors are reported to the user and the session continues.
func (mon *Monitor) Execute(ctx context.Context, line string) error {
	cmd := ParseCommand(line)
	switch cmd.Name {
	case "", "s", "step":
		n, err := parseCount(cmd.Args, 0, 1)
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if !mon.step() {
				break
			}
		}
	case "g", "go":
		n, err := parseCount(cmd.Args, 0, mon.budget)
		if err != nil {
			return err
		}
		return mon.run(ctx, n)
	case "r", "regs":
		mon.registers()
	case "m", "mem":
		if len(cmd.Args) == 0 {
			return errors.New("usage: m <addr> [len]")
		}
		addr, err := mon.address(cmd.Args[0])
		if err != nil {
			return err
		}
		n, err := parseCount(cmd.Args, 1, defaultDumpLen)
		if err != nil {
			return err
		}
		if n > math.MaxUint32 {
			return fmt.Errorf("invalid length %q", cmd.Args[1])
		}
		return mon.dump(addr, uint32(n))
	case "d", "dis":
		addr := mon.m.env.PC()
		if len(cmd.Args) > 0 {
			var err error
			if addr, err = mon.address(cmd.Args[0]); err != nil {
				return err
			}
		}
		n, err := parseCount(cmd.Args, 1, defaultDisasm)
		if err != nil {
			return err
		}
		mon.disassemble(addr, n)
	case "i", "info":
		mon.info()
	case "b", "break":
		if len(cmd.Args) == 0 {
			mon.listBreakpoints()
			return nil
		}
		addr, err := mon.address(cmd.Args[0])
		if err != nil {
			return err
		}
		mon.breakpoints[addr] = struct{}{}
		mon.printf("breakpoint at %08x\n", addr)
	case "bc":
		if len(cmd.Args) == 0 {
			clear(mon.breakpoints)
			return nil
		}
		addr, err := mon.address(cmd.Args[0])
		if err != nil {
			return err
		}
		delete(mon.breakpoints, addr)
	case "reset":
		mon.m.env.Reset()
		mon.pacer.Reset()
		mon.printf("reset, pc=%08x\n", mon.m.env.PC())
	case "hash":
		mon.printf("%s\n", mon.m.env.StateHash().Hex())
	case "save":
		if len(cmd.Args) != 1 {
			return errors.New("usage: save <path>")
		}
		if err := saveState(mon.m.env, cmd.Args[0]); err != nil {
			return err
		}
		mon.printf("saved %s\n", cmd.Args[0])
	case "load":
		if len(cmd.Args) != 1 {
			return errors.New("usage: load <path>")
		}
		if err := restoreState(mon.m.env, cmd.Args[0]); err != nil {
			return err
		}
		mon.printf("loaded %s, pc=%08x\n", cmd.Args[0], mon.m.env.PC())
	case "h", "help", "?":
		mon.help()
	case "q", "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd.Name)
	}
	return nil
}

// step retires one instruction and prints it, or prints the trap. It reports whether execution can continue.
func (mon *Monitor) step() bool {
	r, err := mon.m.env.Step()
	if err != nil {
		mon.printTrap(err)
		return false
	}
	mon.printf("%08x: %08x  %-28s %s\n", r.PC, r.Instruction.Raw, r.Instruction, mon.m.symbol(r.PC))
	return true
}

func (mon *Monitor) printTrap(err error) {
	var trap *isa.Trap
	if errors.As(err, &trap) {
		mon.printf("trap: %v (word %08x, cycle %d)\n", trap, trap.Word, mon.m.env.Cycle())
		return
	}
	mon.printf("error: %v\n", err)
}

// Interrupt stops the "g" in progress before its next instruction and reports
// whether one was running.
func (mon *Monitor) Interrupt() bool {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.stop == nil {
		return false
	}
	mon.stop()
	return true
}

func (mon *Monitor) running() bool {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.stop != nil
}

func (mon *Monitor) setStop(stop context.CancelFunc) {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	mon.stop = stop
}

func (mon *Monitor) run(ctx context.Context, n uint64) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mon.setStop(cancel)
	defer mon.setStop(nil)

	e := mon.m.env
	mon.pacer.Reset()
	var steps uint64
	for steps < n {
		if _, hit := mon.breakpoints[e.PC()]; hit && steps > 0 {
			mon.printf("breakpoint at %08x after %d steps\n", e.PC(), steps)
			return nil
		}
		if _, err := mon.pacer.Wait(runCtx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mon.printf("interrupted at %08x after %d steps\n", e.PC(), steps)
			return nil
		}
		if _, err := e.Step(); err != nil {
			mon.printTrap(err)
			return nil
		}
		steps++
	}
	mon.printf("ran %d steps, pc=%08x\n", steps, e.PC())
	return nil
}

func (mon *Monitor) registers() {
	snap := mon.m.env.Inspect()
	for i := 0; i < 32; i += 4 {
		for j := i; j < i+4; j++ {
			mon.printf("x%-2d %-4s %08x  ", j, riscv.ABINames[j], snap.Registers[j])
		}
		mon.printf("\n")
	}
	mon.printf("pc       %08x  cycle %d\n", snap.PC, snap.Cycle)
}

func (mon *Monitor) dump(addr, n uint32) error {
	data, err := mon.m.env.ReadMemory(addr, n)
	if err != nil {
		return err
	}
	for off := 0; off < len(data); off += 16 {
		row := data[off:min(off+16, len(data))]
		mon.printf("%08x: % x\n", addr+uint32(off), row)
	}
	return nil
}

func (mon *Monitor) disassemble(addr uint32, n uint64) {
	pc := mon.m.env.PC()
	for i := uint64(0); i < n; i++ {
		word, text, err := mon.m.env.Disassemble(addr)
		if err != nil {
			mon.printf("%08x: %v\n", addr, err)
			return
		}
		marker := " "
		if addr == pc {
			marker = ">"
		}
		mon.printf("%s%08x: %08x  %s\n", marker, addr, word, text)
		addr += riscv.InstrSize
	}
}

func (mon *Monitor) info() {
	snap := mon.m.env.Inspect()
	mon.printf("pc %08x, cycle %d, extensions %s\n", snap.PC, snap.Cycle, strings.Join(snap.Extensions, "+"))
	for _, r := range snap.Regions {
		mon.printf("  %-4s %08x-%08x %s %d bytes\n", r.Name, r.Base, uint64(r.Base)+uint64(r.Size), r.Perm, r.Size)
	}
	mon.printf("memory %s\n", mon.m.env.MemoryUsage())
	if snap.Trap != nil {
		mon.printf("trapped: %s at %08x: %s\n", snap.Trap.Kind, snap.Trap.PC, snap.Trap.Message)
	}
}

func (mon *Monitor) listBreakpoints() {
	addrs := make([]uint32, 0, len(mon.breakpoints))
	for a := range mon.breakpoints {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, a := range addrs {
		mon.printf("%08x %s\n", a, mon.m.symbol(a))
	}
}

func (mon *Monitor) help() {
	mon.printf(`commands:
  <enter>, s [n]   step one or n instructions
  g [n]            run until trap, breakpoint, Ctrl-C or n steps
  r                registers
  m <addr> [len]   dump memory
  d [addr] [n]     disassemble, from pc by default
  i                machine info
  b [addr]         set or list breakpoints
  bc [addr]        clear one or all breakpoints
  reset            reset registers, RAM and clock
  hash             state hash
  save <path>      write state as JSON
  load <path>      restore state from JSON
  q                quit
addresses: 0x1f, $1f, 1f (hex), #31 (decimal) or a symbol name
`)
}

// lineReader yields input lines until EOF.
type lineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct{ *bufio.Scanner }

func (s scannerReader) ReadLine() (string, error) {
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.Text(), nil
}

// Loop reads commands until quit or EOF.
func (mon *Monitor) Loop(ctx context.Context, in lineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}
		if err := mon.Execute(ctx, line); errors.Is(err, errQuit) {
			return nil
		} else if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			mon.printf("error: %v\n", err)
		}
	}
}

const keyCtrlC = 0x03

// forwardInput copies terminal input to the line editor. Input that arrives while a
// g is running is dropped, and a Ctrl-C in it interrupts the run.
func forwardInput(in io.Reader, w *io.PipeWriter, mon *Monitor) {
	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if mon.running() {
				if bytes.IndexByte(chunk, keyCtrlC) >= 0 {
					mon.Interrupt()
				}
			} else if _, werr := w.Write(chunk); werr != nil {
				return
			}
		}
		if err != nil {
			_ = w.CloseWithError(err)
			return
		}
	}
}

var MonitorClockFlag = &cli.StringFlag{
	Name:    ClockFlag.Name,
	Usage:   "pacing of the g command: manual (as fast as possible), free, or a frequency in Hz",
	Value:   "manual",
	EnvVars: ClockFlag.EnvVars,
}

func RunMonitor(ctx *cli.Context) error {
	var pacer clock.Pacer = clock.Free{}
	if c := ctx.String(MonitorClockFlag.Name); c != "manual" {
		var err error
		if pacer, err = clock.ParsePacer(c); err != nil {
			return err
		}
	}
	m, err := newMachine(ctx)
	if err != nil {
		return err
	}
	budget := ctx.Uint64(MaxStepsFlag.Name)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		mon := NewMonitor(m, os.Stdout, pacer, budget)
		return mon.Loop(ctx.Context, scannerReader{bufio.NewScanner(os.Stdin)})
	}
	// raw mode disables ISIG, so Ctrl-C arrives as input and stops a running g
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set terminal to raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()
	pr, pw := io.Pipe()
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{pr, os.Stdout}, "z2l> ")
	mon := NewMonitor(m, t, pacer, budget)
	go forwardInput(os.Stdin, pw, mon)
	mon.printf("z2l monitor, %s, pc=%08x. type help for commands\n", strings.Join(m.env.Extensions(), "+"), m.env.PC())
	return mon.Loop(ctx.Context, t)
}

var MonitorCommand = &cli.Command{
	Name:        "monitor",
	Usage:       "Step and inspect a ROM image interactively",
	Description: "Interactive monitor. Reads commands from the terminal, or line by line from stdin when it is not a terminal.",
	Action:      RunMonitor,
	Flags: append([]cli.Flag{
		MonitorClockFlag,
		MaxStepsFlag,
	}, machineFlags...),
}
