package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the singular value cutoff, relative to the largest one,
// below which the anchor geometry is treated as rank deficient.
const rankTolerance = 1e-9

// Trilaterate estimates the 2-D position of an emitter from the positions of
// three or more anchors and the estimated distance from each anchor to it.
//
// The first anchor is the reference. Subtracting its circle equation from
// every other one gives a linear system
//
//	2(xi-x1)·x + 2(yi-y1)·y = d1² - di² - x1² - y1² + xi² + yi²
//
// which is solved in the least-squares sense, so extra anchors reduce the
// residual rather than over-constraining the solve.
func Trilaterate(anchors []Position, distances []float64) (Position, error) {
	if len(anchors) != len(distances) || len(anchors) < 3 {
		return Position{}, fmt.Errorf("%w: got %d anchors, %d distances", ErrInsufficientAnchors, len(anchors), len(distances))
	}
	for i, p := range anchors {
		if !finite(p.X) || !finite(p.Y) || !finite(distances[i]) || distances[i] < 0 {
			return Position{}, fmt.Errorf("%w: anchor %d has non-finite input", ErrDegenerateGeometry, i)
		}
	}

	ref, d1 := anchors[0], distances[0]
	rows := len(anchors) - 1
	a := mat.NewDense(rows, 2, nil)
	b := mat.NewVecDense(rows, nil)
	for i := 1; i < len(anchors); i++ {
		p, di := anchors[i], distances[i]
		a.Set(i-1, 0, 2*(p.X-ref.X))
		a.Set(i-1, 1, 2*(p.Y-ref.Y))
		b.SetVec(i-1, d1*d1-di*di-ref.X*ref.X-ref.Y*ref.Y+p.X*p.X+p.Y*p.Y)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return Position{}, fmt.Errorf("%w: factorization failed", ErrDegenerateGeometry)
	}
	if rank := svd.Rank(rankTolerance); rank < 2 {
		return Position{}, fmt.Errorf("%w: rank %d (collinear or coincident anchors)", ErrDegenerateGeometry, rank)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, 2)

	pos := Position{X: x.AtVec(0), Y: x.AtVec(1)}
	if !finite(pos.X) || !finite(pos.Y) {
		return Position{}, fmt.Errorf("%w: solution is not finite", ErrDegenerateGeometry)
	}
	return pos, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
