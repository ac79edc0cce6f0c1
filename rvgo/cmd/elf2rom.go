package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/z2l-emu/z2l/rvgo/rom"
)

var (
	ELFPathFlag = &cli.PathFlag{
		Name:      "path",
		Usage:     "path of the 32-bit RISC-V ELF to convert",
		TakesFile: true,
		Required:  true,
	}
	ROMOutFlag = &cli.PathFlag{
		Name:      "out",
		Usage:     "path of the flat ROM image to write",
		TakesFile: true,
		Value:     "rom.bin",
	}
)

func ELF2ROM(ctx *cli.Context) error {
	elfPath := ctx.Path(ELFPathFlag.Name)
	image, err := rom.LoadELF(elfPath)
	if err != nil {
		return fmt.Errorf("failed to flatten ELF: %w", err)
	}
	out := ctx.Path(ROMOutFlag.Name)
	if err := os.WriteFile(out, image, OutFilePerm); err != nil {
		return fmt.Errorf("failed to write ROM image %q: %w", out, err)
	}
	fmt.Printf("%s: %d bytes\n", out, len(image))
	return nil
}

var ELF2ROMCommand = &cli.Command{
	Name:        "elf2rom",
	Usage:       "Flatten an ELF executable into a raw ROM image",
	Description: "Flatten the loadable segments of a 32-bit RISC-V ELF, linked at address 0, into a raw ROM image",
	Action:      ELF2ROM,
	Flags: []cli.Flag{
		ELFPathFlag,
		ROMOutFlag,
	},
}
