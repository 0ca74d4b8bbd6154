package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/impute"
	"github.com/edbonneville/smcfcs/submodel"
)

type runInputs struct {
	frame *data.Frame
	covs  []impute.CovariateSpec
	sm    *submodel.Spec
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <job.yaml>",
		Short: "Check a job file and its data without imputing",
		Long: `Check a job file and its data without imputing.

Reports the variables of the data file, their kinds and numbers of missing
values, and any problem that would make the run fail before sampling.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateJob(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func validateJob(opts *RootOptions, path string, cmd *cobra.Command) error {

	job, in, err := setup(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d observations\n", in.frame.NumObs())
	for _, c := range in.frame.Columns() {
		fmt.Fprintf(out, "  %-12s %-12s %d missing\n", c.Name, c.Kind, in.frame.NumMissing(c.Name))
	}

	if err := impute.Validate(in.frame, in.covs, in.sm, job.Options()); err != nil {
		return err
	}

	if l := opts.logger(cmd); l != nil {
		l.Printf("%s model with %d terms\n", in.sm.Type, len(in.sm.Terms))
	}
	fmt.Fprintln(out, "job is valid")

	return nil
}
