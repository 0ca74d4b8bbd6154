// Command smcfcs imputes missing covariates by substantive model
// compatible fully conditional specification.
package main

import (
	"fmt"
	"os"

	"github.com/edbonneville/smcfcs/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "smcfcs: %v\n", err)
		os.Exit(1)
	}
}
