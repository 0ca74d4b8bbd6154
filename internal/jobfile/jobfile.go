// Package jobfile reads the YAML job descriptions and CSV data files of
// the smcfcs command, and writes the completed datasets.
package jobfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/edbonneville/smcfcs/covmodel"
	"github.com/edbonneville/smcfcs/data"
	"github.com/edbonneville/smcfcs/impute"
	"github.com/edbonneville/smcfcs/submodel"
)

// Job describes an imputation run.
type Job struct {
	Data       string            `yaml:"data"`
	Output     string            `yaml:"output"`
	Variables  []VariableConfig  `yaml:"variables"`
	Covariates []CovariateConfig `yaml:"covariates"`
	Model      ModelConfig       `yaml:"model"`
	Imputation ImputationConfig  `yaml:"imputation"`
}

// VariableConfig declares the kind of a variable in the data file.
// Variables that are not declared have their kind inferred.
type VariableConfig struct {
	Name   string   `yaml:"name"`
	Kind   string   `yaml:"kind"`
	Levels []string `yaml:"levels"`
}

// CovariateConfig describes the imputation of a covariate.
type CovariateConfig struct {
	Name       string   `yaml:"name"`
	Method     string   `yaml:"method"`
	Predictors []string `yaml:"predictors"`
}

// ModelConfig describes the substantive model.  Terms are written as
// "x", "x^2" or "x:z".
type ModelConfig struct {
	Type        string     `yaml:"type"`
	Outcome     string     `yaml:"outcome"`
	Time        string     `yaml:"time"`
	Status      string     `yaml:"status"`
	Terms       []string   `yaml:"terms"`
	CauseTerms  [][]string `yaml:"causeTerms"`
	Knots       *int       `yaml:"knots"`
	Subcohort   string     `yaml:"subcohort"`
	SampFrac    float64    `yaml:"sampFrac"`
	Set         string     `yaml:"set"`
	NumAtRisk   string     `yaml:"numAtRisk"`
	TimeEffects string     `yaml:"timeEffects"`
}

// ImputationConfig holds the options of the run.
type ImputationConfig struct {
	M           int    `yaml:"m"`
	Iterations  int    `yaml:"iterations"`
	Seed        uint64 `yaml:"seed"`
	RjLimit     int    `yaml:"rjlimit"`
	Workers     int    `yaml:"workers"`
	ImputeTimes bool   `yaml:"imputeTimes"`
	CensTime    Floats `yaml:"censtime"`
}

// Floats is a list of numbers that may be written in YAML as a single
// number.
type Floats []float64

// UnmarshalYAML decodes a scalar or a sequence of numbers.
func (f *Floats) UnmarshalYAML(value *yaml.Node) error {

	if value.Kind == yaml.ScalarNode {
		var x float64
		if err := value.Decode(&x); err != nil {
			return err
		}
		*f = Floats{x}
		return nil
	}

	var x []float64
	if err := value.Decode(&x); err != nil {
		return err
	}
	*f = x
	return nil
}

// Load reads a job file.  Relative data and output paths are taken
// relative to the directory of the job file.  The environment variables
// SMCFCS_WORKERS and SMCFCS_SEED override the corresponding settings.
func Load(path string) (*Job, error) {

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("job file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read job file: %w", err)
	}

	job, err := Parse(b)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if job.Data != "" && !filepath.IsAbs(job.Data) {
		job.Data = filepath.Join(dir, job.Data)
	}
	if job.Output != "" && !filepath.IsAbs(job.Output) {
		job.Output = filepath.Join(dir, job.Output)
	}

	if err := applyEnvOverrides(job); err != nil {
		return nil, err
	}

	return job, nil
}

// Parse decodes a job description, filling in the default options.
func Parse(b []byte) (*Job, error) {

	job := defaultJob()
	if err := yaml.Unmarshal(b, job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}

	return job, nil
}

func defaultJob() *Job {
	opts := impute.DefaultOptions()
	return &Job{
		Output: "imputed",
		Imputation: ImputationConfig{
			M:          opts.M,
			Iterations: opts.Iterations,
			Seed:       opts.Seed,
			RjLimit:    opts.RjLimit,
			Workers:    opts.Workers,
		},
	}
}

func applyEnvOverrides(job *Job) error {
	if v := os.Getenv("SMCFCS_WORKERS"); v != "" {
		w, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("SMCFCS_WORKERS: %w", err)
		}
		job.Imputation.Workers = w
	}
	if v := os.Getenv("SMCFCS_SEED"); v != "" {
		s, err := cast.ToUint64E(v)
		if err != nil {
			return fmt.Errorf("SMCFCS_SEED: %w", err)
		}
		job.Imputation.Seed = s
	}
	return nil
}

// ParseTerm parses a formula term: a variable name, optionally raised to
// a positive integer power, or a product of such factors separated by
// colons.
func ParseTerm(s string) (submodel.Term, error) {

	var t submodel.Term
	for _, part := range strings.Split(s, ":") {
		name, pow, found := strings.Cut(part, "^")
		name = strings.TrimSpace(name)
		if name == "" {
			return submodel.Term{}, fmt.Errorf("term '%s': empty variable name", s)
		}
		f := submodel.Factor{Var: name}
		if found {
			p, err := cast.ToIntE(strings.TrimSpace(pow))
			if err != nil || p < 1 {
				return submodel.Term{}, fmt.Errorf("term '%s': invalid power '%s'", s, pow)
			}
			f.Power = p
		}
		t.Factors = append(t.Factors, f)
	}

	return t, nil
}

func parseTerms(terms []string) ([]submodel.Term, error) {
	var tl []submodel.Term
	for _, s := range terms {
		t, err := ParseTerm(s)
		if err != nil {
			return nil, err
		}
		tl = append(tl, t)
	}
	return tl, nil
}

// SubstantiveModel returns the substantive model of the job.  Flexible
// parametric models have DefaultKnots interior knots unless the job
// gives the number.
func (job *Job) SubstantiveModel() (*submodel.Spec, error) {

	mc := job.Model
	typ, err := submodel.ParseType(mc.Type)
	if err != nil {
		return nil, err
	}

	terms, err := parseTerms(mc.Terms)
	if err != nil {
		return nil, err
	}

	var cterms [][]submodel.Term
	for _, ct := range mc.CauseTerms {
		t, err := parseTerms(ct)
		if err != nil {
			return nil, err
		}
		cterms = append(cterms, t)
	}

	knots := submodel.DefaultKnots
	if mc.Knots != nil {
		knots = *mc.Knots
	}

	return &submodel.Spec{
		Type:        typ,
		Outcome:     mc.Outcome,
		Time:        mc.Time,
		Status:      mc.Status,
		Terms:       terms,
		CauseTerms:  cterms,
		Knots:       knots,
		Subcohort:   mc.Subcohort,
		SampFrac:    mc.SampFrac,
		Set:         mc.Set,
		NumAtRisk:   mc.NumAtRisk,
		TimeEffects: mc.TimeEffects,
	}, nil
}

// CovariateSpecs returns the covariate specifications of the job.
func (job *Job) CovariateSpecs() ([]impute.CovariateSpec, error) {

	var covs []impute.CovariateSpec
	for _, c := range job.Covariates {
		m, err := covmodel.ParseMethod(c.Method)
		if err != nil {
			return nil, fmt.Errorf("covariate '%s': %w", c.Name, err)
		}
		covs = append(covs, impute.CovariateSpec{Name: c.Name, Method: m, Predictors: c.Predictors})
	}

	return covs, nil
}

// Options returns the options of the run.
func (job *Job) Options() *impute.Options {
	ic := job.Imputation
	opts := impute.DefaultOptions()
	opts.M = ic.M
	opts.Iterations = ic.Iterations
	opts.Seed = ic.Seed
	opts.RjLimit = ic.RjLimit
	opts.Workers = ic.Workers
	opts.ImputeTimes = ic.ImputeTimes
	opts.CensTime = ic.CensTime
	return opts
}

// ReadData reads the data file of the job.
func (job *Job) ReadData() (*data.Frame, error) {

	if job.Data == "" {
		return nil, fmt.Errorf("job has no data file")
	}

	fid, err := os.Open(job.Data)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	return ReadCSV(fid, job.Variables)
}
