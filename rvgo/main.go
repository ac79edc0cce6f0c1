package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/z2l-emu/z2l/rvgo/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "z2l"
	app.Usage = "RV32I emulator"
	app.Description = "Bare-metal RISC-V RV32I emulator with pluggable ISA extensions"
	app.Commands = []*cli.Command{
		cmd.RunCommand,
		cmd.MonitorCommand,
		cmd.ELF2ROMCommand,
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			<-c
			cancel()
			fmt.Println("\r\nExiting...")
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			_, _ = fmt.Fprintf(os.Stderr, "command interrupted")
			os.Exit(130)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v", err)
			os.Exit(1)
		}
	}
}
