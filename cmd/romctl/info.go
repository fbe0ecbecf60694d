package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/romkit/internal/nesfile"
	"github.com/joshuapare/romkit/rom"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <rom>",
		Short: "Validate an iNES header and report the derived layout",
		Long: `The info command parses the iNES header of a ROM image and prints the
segment layout romctl uses when a configuration does not declare one.

Example:
  romctl info game.nes
  romctl info game.nes --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

type infoResult struct {
	File     string     `json:"file"`
	Size     int        `json:"size"`
	SHA256   string     `json:"sha256"`
	Mapper   int        `json:"mapper"`
	PRGBanks int        `json:"prg_banks"`
	CHRBanks int        `json:"chr_banks"`
	Trainer  bool       `json:"trainer"`
	Extra    int        `json:"extra,omitempty"`
	Layout   rom.Layout `json:"layout"`
}

func runInfo(args []string) error {
	romPath := args[0]

	printVerbose("Opening ROM: %s\n", romPath)

	data, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("failed to read ROM: %w", err)
	}
	layout, info, err := nesfile.Inspect(data)
	if err != nil {
		return fmt.Errorf("failed to inspect ROM: %w", err)
	}
	b, err := rom.FromBytes(data, layout)
	if err != nil {
		return err
	}

	res := infoResult{
		File:     romPath,
		Size:     b.Len(),
		SHA256:   b.SHA256(),
		Mapper:   info.Mapper,
		PRGBanks: info.PRGBanks,
		CHRBanks: info.CHRBanks,
		Trainer:  info.Trainer,
		Extra:    info.Extra,
		Layout:   layout,
	}
	if jsonOut {
		return printJSON(res)
	}

	printInfo("\nROM Information:\n")
	printInfo("  File: %s\n", res.File)
	printInfo("  Size: %s\n", formatSize(res.Size))
	printInfo("  SHA256: %s\n", res.SHA256)
	printInfo("  Mapper: %d\n", res.Mapper)
	printInfo("  PRG banks: %d\n", res.PRGBanks)
	printInfo("  CHR banks: %d\n", res.CHRBanks)
	if res.Trainer {
		printInfo("  Trainer: yes\n")
	}
	if res.Extra > 0 {
		printInfo("  Extra: %d bytes\n", res.Extra)
	}

	printInfo("\nLayout:\n")
	for _, s := range layout {
		if s.IsBanked() {
			printInfo("  %-8s %-6s 0x%06x-0x%06x  %d x 0x%x\n",
				s.Name, s.Kind, s.Offset, s.End(), s.Banks(), s.BankSize)
		} else {
			printInfo("  %-8s %-6s 0x%06x-0x%06x\n", s.Name, s.Kind, s.Offset, s.End())
		}
	}
	return nil
}
