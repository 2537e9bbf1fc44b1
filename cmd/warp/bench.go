package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"warp/internal/observ"
	"warp/internal/prof"
	"warp/internal/program"
)

var benchCmd = &cobra.Command{
	Use:   "bench [flags] <program.wp>",
	Short: "Measure tiered execution of a guest program",
	Long:  `Run a guest program repeatedly and report per-tier execution counts and timings`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().String("target", "", "target ISA (x86_64|aarch64|riscv64|ppc64)")
	benchCmd.Flags().Int("iterations", 100, "number of full program runs")
	benchCmd.Flags().Int("max-blocks", 1_000_000, "dispatch cap per run")
	benchCmd.Flags().Bool("json", false, "emit timings as JSON")
	benchCmd.Flags().String("cpuprofile", "", "write a CPU profile")
	benchCmd.Flags().String("memprofile", "", "write a heap profile")
	benchCmd.Flags().String("runtime-trace", "", "write a runtime trace")
}

func runBench(cmd *cobra.Command, args []string) error {
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

	targetFlag, _ := cmd.Flags().GetString("target")
	iterations, _ := cmd.Flags().GetInt("iterations")
	maxBlocks, _ := cmd.Flags().GetInt("max-blocks")
	cpuPath, _ := cmd.Flags().GetString("cpuprofile")
	memPath, _ := cmd.Flags().GetString("memprofile")
	tracePath, _ := cmd.Flags().GetString("runtime-trace")

	eng, err := buildEngine(cfg, prog, targetFlag)
	if err != nil {
		return err
	}
	eng.Start(cmd.Context())
	defer func() { _ = eng.Close() }()

	session, err := prof.Start(cpuPath, memPath, tracePath)
	if err != nil {
		return err
	}

	timer := observ.NewTimer()
	phase := timer.Begin("bench")
	var firstErr error
	for i := 0; i < iterations; i++ {
		m, err := prog.Machine()
		if err != nil {
			firstErr = err
			break
		}
		if pc, err := eng.Run(m, prog.EntryPC, maxBlocks); err != nil {
			firstErr = fmt.Errorf("iteration %d at 0x%x: %w", i, pc, err)
			break
		}
	}
	phase.End(fmt.Sprintf("%d iterations", iterations))

	if err := session.Stop(); err != nil {
		return err
	}
	if firstErr != nil {
		cmd.SilenceUsage = true
		return firstErr
	}

	st := eng.Stats()
	var compileTotal time.Duration
	for _, w := range st.Workers {
		compileTotal += w.CompileTime
	}
	timer.Add("compile (workers)", compileTotal, "")

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := timer.WriteJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, timer.Summary())
	}
	printStats(out, st)
	return eng.Err()
}
