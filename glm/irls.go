package glm

import (
	"fmt"
	"math"
	"sync"

	"github.com/edbonneville/smcfcs/statmodel"
	"gonum.org/v1/gonum/mat"
)

func (glm *GLM) fitIRLS(start []float64, maxiter int) ([]float64, error) {

	dtol := 1e-8

	linpred := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()
	lderiv := glm.getNslice()
	irlsw := glm.getNslice()
	adjy := glm.getNslice()

	var nparam mat.VecDense

	nvar := glm.NumParams()

	xty := make([]float64, nvar)
	xtx := make([]float64, nvar*nvar)

	params := make([]float64, nvar)
	copy(params, start)

	var dev []float64

	xdat := make([][]statmodel.Dtype, len(glm.xpos))
	for j, k := range glm.xpos {
		xdat[j] = glm.data[k]
	}

	yda := glm.data[glm.ypos]
	wgt := glm.weights()

	var off []statmodel.Dtype
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	// IRLS iterations
	for iter := 0; iter < maxiter; iter++ {

		zero(xtx)
		zero(xty)

		if iter == 0 && glm.start == nil {
			glm.startingMu(yda, mn)
			glm.link.Link(mn, linpred)
			if off != nil {
				for i := range linpred {
					linpred[i] -= off[i]
				}
			}
		} else {
			glm.linpred(params, linpred)
			glm.link.InvLink(linpred, mn)
			if off != nil {
				for i := range linpred {
					linpred[i] -= off[i]
				}
			}
		}

		glm.link.Deriv(mn, lderiv)
		glm.vari.Var(mn, va)

		devi := glm.fam.Deviance(yda, mn, wgt, 1)

		// Create weights for WLS
		for i := range yda {
			irlsw[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
			if wgt != nil {
				irlsw[i] *= wgt[i]
			}
		}

		// Create an adjusted response for WLS, excluding the offset
		for i := range yda {
			adjy[i] = linpred[i] + lderiv[i]*(yda[i]-mn[i])
		}

		// Update the weighted moment matrices.  For large data sets, this is by far the
		// most expensive step.
		glm.irlsXprod(xdat, adjy, irlsw, xty, xtx)

		// Fill in the unfilled triangle of xtx
		for j1 := 0; j1 < nvar; j1++ {
			for j2 := j1 + 1; j2 < nvar; j2++ {
				xtx[j1*nvar+j2] = xtx[j2*nvar+j1]
			}
		}

		// Update the parameters
		xtxm := mat.NewDense(nvar, nvar, xtx)
		xtyv := mat.NewVecDense(nvar, xty)
		if err := nparam.SolveVec(xtxm, xtyv); err != nil {
			if c, ok := err.(mat.Condition); !ok || math.IsInf(float64(c), 1) {
				return nil, fmt.Errorf("GLM: IRLS iteration %d: %w", iter+1, err)
			}
		}
		copy(params, nparam.RawVector().Data)

		if glm.log != nil {
			glm.log.Printf("Iteration %d: deviance=%.10f\n", iter+1, devi)
		}

		// Check convergence
		dev = append(dev, devi)
		if len(dev) > 3 && math.Abs(dev[len(dev)-1]-dev[len(dev)-2]) < dtol {
			break
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(va)
	glm.putNslice(lderiv)
	glm.putNslice(irlsw)
	glm.putNslice(adjy)

	return params, nil
}

func (glm *GLM) irlsXprod(xdat [][]statmodel.Dtype, adjy, irlsw, xty, xtx []float64) {

	if glm.concurrentIRLS > 0 && len(adjy) >= glm.concurrentIRLS {
		glm.irlsXprodConcurrent(xdat, adjy, irlsw, xty, xtx)
		return
	}

	nvar := len(xdat)

	for j1 := 0; j1 < nvar; j1++ {

		// Update x' w^-1 yadj
		xda := xdat[j1]
		var u float64
		for i := range adjy {
			u += adjy[i] * xda[i] * irlsw[i]
		}
		xty[j1] += u

		// Update x' w^-1 x
		for j2 := 0; j2 <= j1; j2++ {
			xdb := xdat[j2]
			var u float64
			for i := range xda {
				u += xda[i] * xdb[i] * irlsw[i]
			}
			xtx[j1*nvar+j2] += u
		}
	}
}

// irlsXprodConcurrent is a concurrent version of irlsXprod
func (glm *GLM) irlsXprodConcurrent(xdat [][]statmodel.Dtype, adjy, irlsw, xty, xtx []float64) {

	nvar := len(xdat)

	var wg sync.WaitGroup

	for j1 := 0; j1 < nvar; j1++ {

		// Update x' w^-1 yadj
		xda := xdat[j1]
		wg.Add(1)
		go func(j1 int) {
			defer wg.Done()
			var u float64
			for i := range adjy {
				u += adjy[i] * xda[i] * irlsw[i]
			}
			xty[j1] += u
		}(j1)

		// Update x' w^-1 x
		for j2 := 0; j2 <= j1; j2++ {
			xdb := xdat[j2]
			wg.Add(1)
			go func(j1, j2 int) {
				defer wg.Done()
				var u float64
				for i := range xda {
					u += xda[i] * xdb[i] * irlsw[i]
				}
				xtx[j1*nvar+j2] += u
			}(j1, j2)
		}
	}

	wg.Wait()
}

func (glm *GLM) startingMu(y []statmodel.Dtype, mn []float64) {

	var q float64
	if glm.fam.TypeCode == BinomialFamily {
		q = 0.5
	} else {
		for i := range y {
			q += y[i]
		}
		q /= float64(len(y))
	}
	for i := range mn {
		mn[i] = (y[i] + q) / 2
		if glm.fam.TypeCode != GaussianFamily && mn[i] < 0.1 {
			mn[i] = 0.1
		}
	}
}
