package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/edbonneville/smcfcs/impute"
	"github.com/edbonneville/smcfcs/internal/jobfile"
	"github.com/edbonneville/smcfcs/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Output  string
	Workers int
	Seed    uint64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Impute the missing values described by a job file",
		Long: `Impute the missing covariate values described by a job file.

The completed datasets are written to the output directory as
imputation_1.csv, imputation_2.csv, ..., together with the coefficient trace
of the substantive model in trace.csv and a description of the run in
run.yaml.

Example:
  smcfcs run job.yaml
  smcfcs run --workers 4 --metrics - job.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (overrides the job file)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "number of concurrent workers (overrides the job file)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (overrides the job file)")

	return cmd
}

// setup loads the job and its data and returns the inputs of the run.
func setup(path string) (*jobfile.Job, *runInputs, error) {

	job, err := jobfile.Load(path)
	if err != nil {
		return nil, nil, err
	}

	in := &runInputs{}
	if in.frame, err = job.ReadData(); err != nil {
		return nil, nil, fmt.Errorf("read data: %w", err)
	}
	if in.covs, err = job.CovariateSpecs(); err != nil {
		return nil, nil, err
	}
	if in.sm, err = job.SubstantiveModel(); err != nil {
		return nil, nil, err
	}

	return job, in, nil
}

func runJob(opts *RunOptions, path string, cmd *cobra.Command) error {

	job, in, err := setup(path)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		job.Output = opts.Output
	}
	if cmd.Flags().Changed("workers") {
		job.Imputation.Workers = opts.Workers
	}
	if cmd.Flags().Changed("seed") {
		job.Imputation.Seed = opts.Seed
	}

	reg := prometheus.NewRegistry()
	collector := metrics.New()
	if err := collector.Register(reg); err != nil {
		return err
	}

	iopts := job.Options()
	iopts.Log = opts.logger(cmd)
	iopts.Observer = collector

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := impute.Run(ctx, in.frame, in.covs, in.sm, iopts)

	// Metrics are written for failed runs too.
	if err := opts.dumpMetrics(cmd, reg); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	info, err := job.WriteResult(res)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d imputations written to %s\n", info.RunID, info.M, job.Output)
	fmt.Fprintln(out, res.Trace.Summary())

	return nil
}
