package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"warp/internal/aotimage"
	"warp/internal/ir"
	"warp/internal/program"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <program.wp>",
	Short: "Execute a guest program",
	Long:  `Load a guest program and execute it through the tiered engine until it halts`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().String("target", "", "target ISA (x86_64|aarch64|riscv64|ppc64)")
	runCmd.Flags().String("image", "", "preload an AOT image")
	runCmd.Flags().Int("max-blocks", 0, "stop after N block dispatches (0 = unlimited)")
	runCmd.Flags().Bool("stats", false, "print engine statistics on exit")
	runCmd.Flags().Bool("regs", false, "dump guest registers on exit")
}

func runExecution(cmd *cobra.Command, args []string) error {
	if err := applyColorMode(cmd); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	prog, err := program.Load(args[0])
	if err != nil {
		return err
	}
	targetFlag, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	eng, err := buildEngine(cfg, prog, targetFlag)
	if err != nil {
		return err
	}
	eng.Start(cmd.Context())
	defer func() { _ = eng.Close() }()

	imagePath, err := cmd.Flags().GetString("image")
	if err != nil {
		return fmt.Errorf("failed to get image flag: %w", err)
	}
	if imagePath != "" {
		img, err := aotimage.Load(imagePath, eng.Pair())
		if err != nil {
			return err
		}
		installed, err := eng.LoadImage(img)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d precompiled blocks\n", installed)
	}

	m, err := prog.Machine()
	if err != nil {
		return err
	}
	maxBlocks, err := cmd.Flags().GetInt("max-blocks")
	if err != nil {
		return fmt.Errorf("failed to get max-blocks flag: %w", err)
	}

	pc, runErr := eng.Run(m, prog.EntryPC, maxBlocks)
	if runErr != nil {
		// A guest fault is an outcome, not a tool failure: report it with
		// the faulting PC and exit non-zero without usage noise.
		cmd.SilenceUsage = true
		runErr = fmt.Errorf("guest stopped at 0x%x: %w", pc, runErr)
	}

	if showRegs, _ := cmd.Flags().GetBool("regs"); showRegs {
		dumpRegs(cmd.OutOrStdout(), m.Regs)
	}
	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		printStats(cmd.OutOrStdout(), eng.Stats())
	}
	return errors.Join(runErr, eng.Err())
}

func dumpRegs(out io.Writer, regs [ir.NumRegs]uint64) {
	for i, v := range regs {
		fmt.Fprintf(out, "r%-2d = 0x%016x", i, v)
		if i%2 == 1 {
			fmt.Fprintln(out)
		} else {
			fmt.Fprint(out, "    ")
		}
	}
}
