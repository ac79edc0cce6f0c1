package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/z2l-emu/z2l/rvgo/env"
	"github.com/z2l-emu/z2l/rvgo/isa"
	"github.com/z2l-emu/z2l/rvgo/isa/rv32m"
	"github.com/z2l-emu/z2l/rvgo/rom"
)

const envVarPrefix = "Z2L"

func prefixEnvVars(name string) []string {
	return []string{envVarPrefix + "_" + name}
}

var OutFilePerm = os.FileMode(0o755)

var (
	ROMFlag = &cli.PathFlag{
		Name:      "rom",
		Usage:     "ROM image to load at address 0: a raw flat binary, or a 32-bit RISC-V ELF",
		TakesFile: true,
		Required:  true,
		EnvVars:   prefixEnvVars("ROM"),
	}
	MemoryFlag = &cli.StringFlag{
		Name:    "memory",
		Usage:   "RAM size in bytes, optionally suffixed with K, M or G",
		Value:   "32K",
		EnvVars: prefixEnvVars("MEMORY"),
	}
	ExtFlag = &cli.StringSliceFlag{
		Name:    "ext",
		Usage:   "extension to enable on top of RV32I (m)",
		EnvVars: prefixEnvVars("EXT"),
	}
	TrapEcallFlag = &cli.BoolFlag{
		Name:    "trap-ecall",
		Usage:   "stop on ecall/ebreak instead of treating them as no-ops",
		EnvVars: prefixEnvVars("TRAP_ECALL"),
	}
	MaxStepsFlag = &cli.Uint64Flag{
		Name:    "max-steps",
		Usage:   "stop after this many instructions, 0 for no limit",
		EnvVars: prefixEnvVars("MAX_STEPS"),
	}
	ClockFlag = &cli.StringFlag{
		Name:    "clock",
		Usage:   "instruction pacing: free, or a frequency in Hz",
		Value:   "free",
		EnvVars: prefixEnvVars("CLOCK"),
	}
	InputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "JSON state to resume from, as written by --output",
		TakesFile: true,
		EnvVars:   prefixEnvVars("INPUT"),
	}
	OutputFlag = &cli.PathFlag{
		Name:      "output",
		Usage:     "path of the JSON state to write at the end, '-' for stdout",
		TakesFile: true,
		EnvVars:   prefixEnvVars("OUTPUT"),
	}
	InfoEveryFlag = &cli.Uint64Flag{
		Name:    "info-every",
		Usage:   "log progress every N steps, 0 to disable",
		Value:   1_000_000,
		EnvVars: prefixEnvVars("INFO_EVERY"),
	}
	SymbolsFlag = &cli.PathFlag{
		Name:      "elf",
		Usage:     "ELF file to read symbols from, for annotating logs and monitor output",
		TakesFile: true,
		EnvVars:   prefixEnvVars("ELF"),
	}
	PProfCPUFlag = &cli.BoolFlag{
		Name:    "pprof.cpu",
		Usage:   "enable pprof cpu profiling",
		EnvVars: prefixEnvVars("PPROF_CPU"),
	}
	LogLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Usage:   "trace, debug, info, warn, error or crit",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
	}
)

var machineFlags = []cli.Flag{
	ROMFlag,
	MemoryFlag,
	ExtFlag,
	TrapEcallFlag,
	InputFlag,
	SymbolsFlag,
	LogLevelFlag,
}

// ParseMemorySize parses a byte count with an optional K, M or G suffix (powers of 1024).
func ParseMemorySize(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}
	mult := uint64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid memory size %q: %w", s, err)
	}
	size := n * mult
	// RAM starts at 2 GiB, so 2 GiB fills the rest of the address space
	if size == 0 || size > 1<<31 {
		return 0, fmt.Errorf("memory size %d out of range (1 B to 2 GiB)", size)
	}
	return uint32(size), nil
}

// ParseExtensions maps extension names to implementations.
func ParseExtensions(names []string) ([]isa.Extension, error) {
	var out []isa.Extension
	for _, name := range names {
		switch strings.ToLower(name) {
		case "m", "rv32m":
			out = append(out, rv32m.Extension{})
		default:
			return nil, fmt.Errorf("unknown extension %q", name)
		}
	}
	return out, nil
}

// machine holds what the commands build from machineFlags.
type machine struct {
	env  *env.Environment
	syms rom.SortedSymbols
	log  log.Logger
}

func newMachine(ctx *cli.Context) (*machine, error) {
	lvl, err := ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return nil, err
	}
	l := Logger(os.Stderr, lvl)

	image, err := rom.Open(ctx.Path(ROMFlag.Name))
	if err != nil {
		return nil, err
	}
	ramSize, err := ParseMemorySize(ctx.String(MemoryFlag.Name))
	if err != nil {
		return nil, err
	}
	exts, err := ParseExtensions(ctx.StringSlice(ExtFlag.Name))
	if err != nil {
		return nil, err
	}
	e, err := env.New(env.Config{
		ROM:                  image,
		RAMSize:              ramSize,
		Extensions:           exts,
		TrapEnvironmentCalls: ctx.Bool(TrapEcallFlag.Name),
		Logger:               l,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}
	if input := ctx.Path(InputFlag.Name); input != "" {
		if err := restoreState(e, input); err != nil {
			return nil, err
		}
	}

	m := &machine{env: e, log: l}
	if path := ctx.Path(SymbolsFlag.Name); path != "" {
		if m.syms, err = rom.LoadSymbols(path); err != nil {
			return nil, err
		}
	}
	l.Info("loaded ROM", "size", len(image), "ram", ramSize, "extensions", e.Extensions())
	return m, nil
}

// symbol names the code at addr, empty without symbols.
func (m *machine) symbol(addr uint32) string {
	if m.syms == nil {
		return ""
	}
	return m.syms.FindSymbol(addr).Name
}
