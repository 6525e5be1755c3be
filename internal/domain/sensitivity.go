package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// ApplySensitivity projects profile through the averaging kernel:
//
//	linear: xa + A·(x − xa)
//	log:    exp(ln xa + A·(ln x − ln xa))
//
// Log mode needs strictly positive operands. Operands outside the domain, or a
// non-finite result, return ErrNumericDomain; shape disagreements return ErrShapeMismatch.
func ApplySensitivity(kernel *sparse.DenseArray, apriori, profile []float64, logSpace bool) ([]float64, error) {
	n := len(profile)
	if len(apriori) != n {
		return nil, fmt.Errorf("%w: apriori %d levels, profile %d", ErrShapeMismatch, len(apriori), n)
	}
	if kernel == nil || len(kernel.Shape) != 2 || kernel.Shape[0] != n || kernel.Shape[1] != n {
		return nil, fmt.Errorf("%w: kernel shape %v for %d levels", ErrShapeMismatch, kernelShape(kernel), n)
	}
	if !allFinite(kernel.Elements) {
		return nil, fmt.Errorf("%w: non-finite averaging kernel", ErrNumericDomain)
	}

	xa := make([]float64, n)
	x := make([]float64, n)
	for i := range n {
		if err := checkOperand("apriori", i, apriori[i], logSpace); err != nil {
			return nil, err
		}
		if err := checkOperand("profile", i, profile[i], logSpace); err != nil {
			return nil, err
		}
		xa[i], x[i] = apriori[i], profile[i]
		if logSpace {
			xa[i], x[i] = math.Log(xa[i]), math.Log(x[i])
		}
	}

	out := make([]float64, n)
	for i := range n {
		sum := 0.0
		for j := range n {
			sum += kernel.Get(i, j) * (x[j] - xa[j])
		}
		v := xa[i] + sum
		if logSpace {
			v = math.Exp(v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite result at level %d", ErrNumericDomain, i)
		}
		out[i] = v
	}
	return out, nil
}

func checkOperand(name string, i int, v float64, logSpace bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s level %d is %g", ErrNumericDomain, name, i, v)
	}
	if logSpace && v <= 0 {
		return fmt.Errorf("%w: %s level %d is %g, log space needs positive values", ErrNumericDomain, name, i, v)
	}
	return nil
}
