package glm

import (
	"fmt"
	"math"

	"github.com/edbonneville/smcfcs/statmodel"
)

// FamilyType is the type of GLM family used in a model.
type FamilyType uint8

// BinomialFamily, ... are families for a GLM.
const (
	BinomialFamily FamilyType = iota
	PoissonFamily
	GaussianFamily
)

// LogLikeFunc evaluates and returns the log-likelihood for a GLM.  The arguments
// are the data, the mean values, the weights, the scale parameter, and the 'exact flag'.
// If the exact flag is false, multiplicative factors that are constant with respect to
// the mean may be omitted.  The weights may be nil in which case all weights are taken to be 1.
type LogLikeFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64, bool) float64

// DevianceFunc evaluates and returns the deviance for a GLM.  The arguments
// are the data, the mean values, the weights, and the scale parameter.  The weights
// may be nil in which case all weights are taken to be 1.
type DevianceFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64) float64

// Family represents a generalized linear model family.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The log-likelihood function for the family
	LogLike LogLikeFunc

	// The deviance function for the family
	Deviance DevianceFunc

	// If true the scale parameter is estimated, otherwise it is
	// fixed at 1.
	freeScale bool

	// The names of valid links for this family.  The first listed
	// link should be the canonical link.
	validLinks []LinkType

	// The variance function that goes with the family.
	varType VarianceType
}

// NewFamily returns a family object corresponding to the given type.
func NewFamily(fam FamilyType) (*Family, error) {

	switch fam {
	case PoissonFamily:
		return &poisson, nil
	case BinomialFamily:
		return &binomial, nil
	case GaussianFamily:
		return &gaussian, nil
	default:
		return nil, fmt.Errorf("unknown GLM family: %v", fam)
	}
}

var poisson = Family{
	Name:       "Poisson",
	TypeCode:   PoissonFamily,
	LogLike:    poissonLogLike,
	Deviance:   poissonDeviance,
	validLinks: []LinkType{LogLink, IdentityLink},
	varType:    IdentityVar,
}

var binomial = Family{
	Name:       "Binomial",
	TypeCode:   BinomialFamily,
	LogLike:    binomialLogLike,
	Deviance:   binomialDeviance,
	validLinks: []LinkType{LogitLink, LogLink, IdentityLink},
	varType:    BinomialVar,
}

var gaussian = Family{
	Name:       "Gaussian",
	TypeCode:   GaussianFamily,
	LogLike:    gaussianLogLike,
	Deviance:   gaussianDeviance,
	freeScale:  true,
	validLinks: []LinkType{IdentityLink, LogLink},
	varType:    ConstantVar,
}

// IsValidLink returns true or false based on whether the link is
// valid for the family.
func (fam *Family) IsValidLink(link *Link) bool {

	for _, q := range fam.validLinks {
		if link.TypeCode == q {
			return true
		}
	}

	return false
}

func poissonLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {

	var ll float64
	var w float64 = 1
	for i := range y {
		if wt != nil {
			w = wt[i]
		}
		ll += w * (y[i]*math.Log(mn[i]) - mn[i])
	}

	if exact {
		for i := range y {
			if wt != nil {
				w = wt[i]
			}
			g, _ := math.Lgamma(y[i] + 1)
			ll -= w * g
		}
	}

	return ll
}

func binomialLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {
	var ll float64
	var w float64 = 1
	for i := range y {
		if wt != nil {
			w = wt[i]
		}
		r := mn[i]/(1-mn[i]) + 1e-200
		ll += w * (y[i]*math.Log(r) + math.Log(1-mn[i]))
	}
	return ll
}

func gaussianLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {
	var ll float64
	var w float64 = 1
	var ws float64
	for i := range y {
		if wt != nil {
			w = wt[i]
		}
		r := y[i] - mn[i]
		ll -= w * r * r / (2 * scale)
		ws += w
	}
	ll -= ws * math.Log(2*math.Pi*scale) / 2
	return ll
}

func poissonDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		if y[i] > 0 {
			dev += 2 * w * y[i] * math.Log(y[i]/mn[i])
		}
		dev -= 2 * w * (y[i] - mn[i])
	}
	dev /= scale

	return dev
}

func binomialDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		if y[i] > 0 {
			dev -= 2 * w * y[i] * math.Log(mn[i])
		}
		if y[i] < 1 {
			dev -= 2 * w * (1 - y[i]) * math.Log(1-mn[i])
		}
	}

	return dev
}

func gaussianDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		r := y[i] - mn[i]
		dev += w * r * r
	}
	dev /= scale

	return dev
}
