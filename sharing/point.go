package sharing

import "github.com/btcsuite/btcd/btcec/v2"

// EvaluationPoint maps a 0-based storage index to the 1-based coordinate its share is evaluated at.
// This is the only place where that offset is applied.
func EvaluationPoint(i uint16) uint64 {
	return uint64(i) + 1
}

// EvaluationScalar is EvaluationPoint as a field element.
func EvaluationScalar(i uint16) *btcec.ModNScalar {
	return scalarFromUint64(EvaluationPoint(i))
}

// EvaluationPoints maps every index in a quorum to its coordinate.
func EvaluationPoints(indices []uint16) []uint64 {
	points := make([]uint64, len(indices))
	for k, i := range indices {
		points[k] = EvaluationPoint(i)
	}
	return points
}
