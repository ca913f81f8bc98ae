package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/ben-gid/traffic-eval/internal/config"
	"github.com/ben-gid/traffic-eval/internal/corpus"
	"github.com/ben-gid/traffic-eval/internal/eval"
	"github.com/ben-gid/traffic-eval/internal/harness"
	"github.com/ben-gid/traffic-eval/internal/logger"
	"github.com/ben-gid/traffic-eval/internal/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "trafficeval",
		Short:         "Compare traffic-sign classifiers on one labeled test set",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./trafficeval.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn, error or disabled")

	rootCmd.AddCommand(newEvaluateCmd(), newInspectCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().String("corpus", "gtsrb", "test set root, one subdirectory per class")
	cmd.Flags().Int("image-size", 0, "resize test images to this square size at load (0 keeps native size)")
	cmd.Flags().Int("workers", 4, "concurrent image decoders")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCorpus(ctx context.Context, cfg *config.Config) (*corpus.Corpus, error) {
	return corpus.Load(ctx, corpus.Options{
		Root:       cfg.Corpus.Root,
		TargetSize: cfg.Corpus.ImageSize,
		Workers:    cfg.Corpus.Workers,
	})
}

func newEvaluateCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run every configured model against the test set and print reports",
		Long: `Load the test set once, then for each configured model: load it, predict
every sample, map predictions onto the sorted class names and print accuracy,
a per-class report and a confusion matrix. A failing model is reported and
skipped; the others still run.

Example: trafficeval evaluate --config trafficeval.yaml --corpus gtsrb --model "fastai Model"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Select(only); err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	addCorpusFlags(cmd)
	cmd.Flags().Int("batch-size", 32, "samples per prediction call")
	cmd.Flags().Int("parallelism", 1, "models evaluated at once")
	cmd.Flags().Bool("disable-acceleration", true, "run inference on the CPU provider only")
	cmd.Flags().String("onnxruntime", "", "path to the onnxruntime shared library")
	cmd.Flags().StringSliceVar(&only, "model", nil, "evaluate only the named models (repeatable)")

	return cmd
}

func runEvaluate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	c, err := loadCorpus(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d test images in %d classes (%d corrupt skipped).\n", c.Len(), c.Classes.Len(), c.Skipped())

	rt, err := model.NewRuntime(model.RuntimeOptions{
		SharedLibraryPath:   cfg.Runtime.SharedLibrary,
		DisableAcceleration: cfg.Runtime.DisableAcceleration,
		CUDADevice:          cfg.Runtime.CUDADevice,
		IntraOpThreads:      cfg.Runtime.IntraOpThreads,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to destroy onnx runtime")
		}
	}()

	h := harness.New(c,
		func(_ context.Context, spec model.Spec) (model.Adapter, error) { return model.Open(rt, spec) },
		harness.WithBatchSize(cfg.Evaluation.BatchSize),
		harness.WithParallelism(cfg.Evaluation.Parallelism),
	)
	outcomes := h.Evaluate(ctx, harness.Specs(cfg.Models))

	for _, o := range outcomes {
		fmt.Fprintln(out)
		if o.Err != nil {
			fmt.Fprintf(out, "===== %s =====\nFAILED at %s: %v\n", o.Model, o.Err.Stage, o.Err.Err)
			continue
		}
		if _, err := o.Report.WriteTo(out); err != nil {
			return err
		}
	}

	reports, failures := harness.Split(outcomes)
	fmt.Fprintln(out, "\n===== Comparison =====")
	if err := eval.WriteComparison(out, reports, failures); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d models failed", len(failures), len(outcomes))
	}
	return nil
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load the test set and print per-class counts and corrupt files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := loadCorpus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return writeInspection(cmd.OutOrStdout(), c)
		},
	}
	addCorpusFlags(cmd)
	return cmd
}

func writeInspection(out io.Writer, c *corpus.Corpus) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "index\tclass\tsamples\t")
	counts := c.Counts()
	for i, name := range c.Classes.Names() {
		fmt.Fprintf(tw, "%d\t%s\t%d\t\n", i, name, counts[i])
	}
	fmt.Fprintf(tw, "\ttotal\t%d\t\n", c.Len())
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "failed images: %d\n", c.Skipped())
	for _, p := range c.Corrupt {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
