package sharing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ShamirToAdditive weights a Shamir share by its Lagrange coefficient over the quorum activePoints,
// so that the additive shares of the whole quorum sum to the secret.
// Every quorum member must use the same activePoints.
func ShamirToAdditive(share PortableKeyShare, activePoints []uint64) (PortableKeyShare, error) {
	return shamirToAdditive(share, activePoints, LagrangeCoefficient)
}

// ShamirToAdditive is the same as the package level function, but reuses cached coefficients.
func (l *LambdaRegistry) ShamirToAdditive(share PortableKeyShare, activePoints []uint64) (PortableKeyShare, error) {
	return shamirToAdditive(share, activePoints, l.GetOrNew)
}

func shamirToAdditive(
	share PortableKeyShare,
	activePoints []uint64,
	lambdaFor func(uint64, []uint64) (*btcec.ModNScalar, error),
) (PortableKeyShare, error) {
	if len(activePoints) < int(share.T) {
		return PortableKeyShare{}, ParticipantError{share.I, insufficient(len(activePoints), int(share.T))}
	}

	x, err := share.Secret()
	if err != nil {
		return PortableKeyShare{}, err
	}

	lambda, err := lambdaFor(share.Point(), activePoints)
	if err != nil {
		return PortableKeyShare{}, ParticipantError{share.I, err}
	}

	share.X = EncodeScalar(x.Mul(lambda))
	share.T = share.N
	return share, nil
}

// QuorumToAdditive converts every member of a signing quorum, using the quorum itself as the active set.
// It holds every private share of the quorum, so it is only meant for simulations and tests.
func QuorumToAdditive(quorum []PortableKeyShare) ([]PortableKeyShare, error) {
	if len(quorum) == 0 {
		return nil, ErrEmptyInput
	}
	if err := checkAgreement(quorum); err != nil {
		return nil, err
	}

	points := QuorumPoints(quorum)
	registry := NewLambdaRegistry()
	additive := make([]PortableKeyShare, len(quorum))
	for k, share := range quorum {
		converted, err := registry.ShamirToAdditive(share, points)
		if err != nil {
			return nil, fmt.Errorf("failed to convert share %d: %w", share.I, err)
		}
		additive[k] = converted
	}
	return additive, nil
}

// SumShares adds up the secret part of additive shares. Simulation only.
func SumShares(additive []PortableKeyShare) (*btcec.ModNScalar, error) {
	if len(additive) == 0 {
		return nil, ErrEmptyInput
	}
	sum := new(btcec.ModNScalar)
	for _, share := range additive {
		x, err := share.Secret()
		if err != nil {
			return nil, err
		}
		sum.Add(x)
	}
	return sum, nil
}
