// Package cli implements the smcfcs command.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// Metrics is the file to which the run metrics are written on
	// exit, or "-" for standard output.
	Metrics string
}

// NewRootCommand creates the root command of the smcfcs CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "smcfcs",
		Short: "Substantive model compatible multiple imputation",
		Long: `Multiple imputation of missing covariates by substantive model compatible
fully conditional specification (SMC-FCS).

A job file in YAML names the data file, the covariates to impute with their
imputation methods, the substantive model and the imputation options.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log progress to standard error")
	cmd.PersistentFlags().StringVar(&opts.Metrics, "metrics", "", "write run metrics to this file (\"-\" for standard output)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// logger returns the progress logger, or nil if not verbose.
func (opts *RootOptions) logger(cmd *cobra.Command) *log.Logger {
	if !opts.Verbose {
		return nil
	}
	return log.New(cmd.ErrOrStderr(), "smcfcs: ", log.LstdFlags)
}

// dumpMetrics writes the gathered metrics in the Prometheus text format.
func (opts *RootOptions) dumpMetrics(cmd *cobra.Command, reg prometheus.Gatherer) error {

	if opts.Metrics == "" {
		return nil
	}

	mfs, err := reg.Gather()
	if err != nil {
		return err
	}

	var w io.Writer
	if opts.Metrics == "-" {
		w = cmd.OutOrStdout()
	} else {
		fid, err := os.Create(opts.Metrics)
		if err != nil {
			return err
		}
		defer fid.Close()
		w = fid
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	return nil
}
