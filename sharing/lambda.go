package sharing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// LagrangeCoefficient derives the interpolating value at zero for myPoint in the polynomial made by allPoints.
// Points are evaluation coordinates, not storage indices, see EvaluationPoint.
func LagrangeCoefficient(myPoint uint64, allPoints []uint64) (*btcec.ModNScalar, error) {
	if len(allPoints) == 0 {
		return nil, fmt.Errorf("%w: no points to interpolate over", ErrEmptyInput)
	}
	if err := checkPoints(allPoints); err != nil {
		return nil, err
	}
	if !slices.Contains(allPoints, myPoint) {
		return nil, fmt.Errorf("%w: point %d is not part of %v", ErrMismatchedParticipant, myPoint, allPoints)
	}

	xi := scalarFromUint64(myPoint)
	negXi := new(btcec.ModNScalar).NegateVal(xi)
	numerator := new(btcec.ModNScalar).SetInt(1)
	denominator := new(btcec.ModNScalar).SetInt(1)

	for _, point := range allPoints {
		if point == myPoint {
			continue
		}

		xj := scalarFromUint64(point)
		diff := new(btcec.ModNScalar).Set(xj).Add(negXi)
		if diff.IsZero() {
			return nil, fmt.Errorf("%w: x_%d - x_%d", ErrSingularDenominator, point, myPoint)
		}

		numerator.Mul(xj)
		denominator.Mul(diff)
	}

	return numerator.Mul(denominator.InverseNonConst()), nil
}

func checkPoints(points []uint64) error {
	seen := make(map[uint64]struct{}, len(points))
	for _, point := range points {
		if point == 0 {
			return fmt.Errorf("%w: coordinate 0 is reserved for the secret", ErrMismatchedParticipant)
		}
		if _, ok := seen[point]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicatePoint, point)
		}
		seen[point] = struct{}{}
	}
	return nil
}

// LambdaRegistry caches Lagrange coefficients by point and quorum. It is safe for concurrent use.
// The order of the quorum doesn't matter.
type LambdaRegistry struct {
	values *xsync.MapOf[string, *btcec.ModNScalar]
}

func NewLambdaRegistry() *LambdaRegistry {
	return &LambdaRegistry{values: xsync.NewMapOf[string, *btcec.ModNScalar]()}
}

func lambdaRegistryKey(myPoint uint64, allPoints []uint64) string {
	sorted := slices.Clone(allPoints)
	slices.Sort(sorted)

	key := make([]byte, 8+8*len(sorted))
	binary.BigEndian.PutUint64(key[0:8], myPoint)
	for i, point := range sorted {
		binary.BigEndian.PutUint64(key[8+i*8:8+(i+1)*8], point)
	}
	return hex.EncodeToString(key)
}

// GetOrNew returns the recorded coefficient, or computes, records and returns a new one.
// The returned scalar is a copy and can be mutated.
func (l *LambdaRegistry) GetOrNew(myPoint uint64, allPoints []uint64) (*btcec.ModNScalar, error) {
	key := lambdaRegistryKey(myPoint, allPoints)
	if lambda, ok := l.values.Load(key); ok {
		return new(btcec.ModNScalar).Set(lambda), nil
	}

	lambda, err := LagrangeCoefficient(myPoint, allPoints)
	if err != nil {
		return nil, err
	}
	l.values.Store(key, lambda)

	return new(btcec.ModNScalar).Set(lambda), nil
}

func (l *LambdaRegistry) Len() int { return l.values.Size() }
