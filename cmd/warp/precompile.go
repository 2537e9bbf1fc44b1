package main

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"warp/internal/aotimage"
	"warp/internal/ir"
	"warp/internal/isa"
	"warp/internal/observ"
	"warp/internal/program"
	"warp/internal/target"
	"warp/internal/translate"
	"warp/internal/ui"
)

var precompileCmd = &cobra.Command{
	Use:   "precompile [flags] <program.wp>",
	Short: "Compile every block of a guest program ahead of time",
	Long:  `Translate all guest blocks at the highest optimization level and write an AOT image for later runs`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPrecompile,
}

func init() {
	precompileCmd.Flags().String("target", "x86_64", "target ISA (x86_64|aarch64|riscv64|ppc64)")
	precompileCmd.Flags().StringP("output", "o", "", "image output path (default <program>.aot)")
	precompileCmd.Flags().Int("jobs", 0, "parallel compile jobs (default GOMAXPROCS)")
}

func runPrecompile(cmd *cobra.Command, args []string) error {
	if err := applyColorMode(cmd); err != nil {
		return err
	}
	prog, err := program.Load(args[0])
	if err != nil {
		return err
	}
	src, err := prog.SourceISA()
	if err != nil {
		return err
	}
	targetFlag, _ := cmd.Flags().GetString("target")
	tgt, err := isa.Parse(targetFlag)
	if err != nil {
		return err
	}
	pair := isa.Pair{Source: src, Target: tgt}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = args[0] + ".aot"
	}
	jobs, _ := cmd.Flags().GetInt("jobs")
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	blocks := append([]*ir.Block(nil), prog.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].StartPC < blocks[j].StartPC })

	quiet, _ := cmd.Flags().GetBool("quiet")
	interactive := !quiet && isTerminal(os.Stdout)
	events := make(chan ui.Event, len(blocks)*4)

	var uiWG sync.WaitGroup
	if interactive {
		pcs := make([]uint64, len(blocks))
		for i, b := range blocks {
			pcs[i] = b.StartPC
		}
		model := ui.NewProgressModel(fmt.Sprintf("precompiling for %s", pair), pcs, events)
		p := tea.NewProgram(model)
		uiWG.Add(1)
		go func() {
			defer uiWG.Done()
			_, _ = p.Run()
		}()
	} else {
		uiWG.Add(1)
		go func() {
			defer uiWG.Done()
			for range events {
			}
		}()
	}

	timer := observ.NewTimer()
	phase := timer.Begin("precompile")

	img := aotimage.New(pair)
	var imgMu sync.Mutex
	var unsupported int

	g, _ := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for _, b := range blocks {
		b := b
		g.Go(func() error {
			events <- ui.Event{PC: b.StartPC, Stage: ui.StageTranslate}
			seq, err := translate.Translate(b, pair, translate.Config{Level: translate.OptFull})
			if err != nil {
				if translate.IsUnsupported(err) || translate.IsRegisterPressure(err) {
					imgMu.Lock()
					unsupported++
					imgMu.Unlock()
					events <- ui.Event{PC: b.StartPC, Status: ui.StatusUnsupported}
					return nil
				}
				events <- ui.Event{PC: b.StartPC, Status: ui.StatusError}
				return err
			}
			events <- ui.Event{PC: b.StartPC, Stage: ui.StageEncode}
			code, err := target.Encode(seq)
			if err != nil {
				events <- ui.Event{PC: b.StartPC, Status: ui.StatusError}
				return err
			}
			imgMu.Lock()
			img.Add(b.StartPC, code)
			imgMu.Unlock()
			events <- ui.Event{PC: b.StartPC, Stage: ui.StageInstall, Status: ui.StatusDone}
			return nil
		})
	}
	gErr := g.Wait()
	close(events)
	uiWG.Wait()
	if gErr != nil {
		return gErr
	}

	if err := img.Save(output); err != nil {
		return err
	}
	phase.End(fmt.Sprintf("%d blocks, %d unsupported", img.Len(), unsupported))

	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, timer.Summary())
		fmt.Fprintf(out, "wrote %s: %d blocks, %d unique blobs\n", output, img.Len(), len(img.Blobs))
	}
	return nil
}
