package cli

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edbonneville/smcfcs/impute"
)

// writeJob writes a logistic regression job with a partially observed
// continuous covariate to a temporary directory.
func writeJob(t *testing.T, model string) string {

	dir := t.TempDir()

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "y,x,z")
	for i := 0; i < 120; i++ {
		z := i % 2
		x := fmt.Sprintf("%.4f", math.Sin(float64(i))+0.3*float64(z))
		if i%5 == 0 {
			x = "NA"
		}
		y := 0
		if math.Cos(float64(7*i)) < math.Sin(float64(i)) {
			y = 1
		}
		fmt.Fprintf(&buf, "%d,%s,%d\n", y, x, z)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), buf.Bytes(), 0o644))

	job := `data: data.csv
output: out
covariates:
  - name: x
    method: norm
model: ` + model + `
imputation:
  m: 2
  iterations: 3
  seed: 5
`
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(job), 0o644))

	return path
}

func execute(args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRun(t *testing.T) {

	path := writeJob(t, "{type: logistic, outcome: y, terms: [x, z, \"x:z\"]}")

	out, err := execute("run", "--verbose", "--workers", "2", "--metrics", "-", path)
	require.NoError(t, err)

	assert.Contains(t, out, "2 imputations written to")
	assert.Contains(t, out, "Coefficient trace")
	assert.Contains(t, out, "smcfcs_imputations_total{outcome=\"success\"} 2")
	assert.Contains(t, out, "imputation 1, iteration 2: x:")
	assert.Contains(t, out, "final fit of the logistic model")
	assert.Contains(t, out, "Generalized linear model analysis")

	dir := filepath.Join(filepath.Dir(path), "out")
	for _, name := range []string{"imputation_1.csv", "imputation_2.csv", "trace.csv", "run.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	b, err := os.ReadFile(filepath.Join(dir, "imputation_1.csv"))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "NA")

	// The same seed gives the same imputations, however many workers.
	other := t.TempDir()
	metricsFile := filepath.Join(other, "metrics.txt")
	_, err = execute("run", "-o", other, "--metrics", metricsFile, path)
	require.NoError(t, err)
	c, err := os.ReadFile(filepath.Join(other, "imputation_2.csv"))
	require.NoError(t, err)
	d, err := os.ReadFile(filepath.Join(dir, "imputation_2.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(d), string(c))

	m, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(m), "smcfcs_proposals_total{variable=\"x\"}")

	_, err = execute("run", "-o", other, "--seed", "6", path)
	require.NoError(t, err)
	c, err = os.ReadFile(filepath.Join(other, "imputation_2.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, string(d), string(c))
}

func TestValidate(t *testing.T) {

	path := writeJob(t, "{type: logistic, outcome: y, terms: [x, z]}")

	out, err := execute("validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "120 observations")
	assert.Contains(t, out, "job is valid")
	assert.True(t, strings.Contains(out, "x") && strings.Contains(out, "24 missing"))

	path = writeJob(t, "{type: dtsam, time: y, status: z, terms: [x]}")
	_, err = execute("validate", path)
	require.ErrorIs(t, err, impute.ErrInvalidInput)

	path = writeJob(t, "{type: logistic, outcome: x, terms: [z]}")
	_, err = execute("run", path)
	require.ErrorIs(t, err, impute.ErrInvalidInput)

	_, err = execute("validate", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)

	_, err = execute("validate")
	assert.Error(t, err)
}
