package sharing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// TrustedKeyDeal splits secret into n Shamir records of threshold t and returns them
// with the matching public parameters. Whoever calls this knows the whole key.
func TrustedKeyDeal(secret *btcec.ModNScalar, t, n uint16) ([]PortableKeyShare, *GlobalParams, error) {
	if n == 0 {
		return nil, nil, fmt.Errorf("can't deal to zero parties")
	}
	if t == 0 || t > n {
		return nil, nil, fmt.Errorf("wrong threshold %d for %d parties", t, n)
	}
	if secret.IsZero() {
		return nil, nil, fmt.Errorf("secret key is zero")
	}

	poly, err := makePolynomial(secret, t)
	if err != nil {
		return nil, nil, err
	}

	commits := Commit(poly)
	y := EncodePoint(commits[0])

	params := &GlobalParams{
		Commitments:  commits,
		PublicShares: make([]*btcec.JacobianPoint, n),
	}

	shares := make([]PortableKeyShare, n)
	for i, x := range poly.shares(n) {
		shares[i] = PortableKeyShare{
			I: uint16(i),
			T: t,
			N: n,
			X: EncodeScalar(x),
			Y: y,
		}
		params.PublicShares[i] = basePoint(x)
	}

	return shares, params, nil
}

// NewSecret samples a uniformly random non-zero scalar.
func NewSecret() (*btcec.ModNScalar, error) {
	sk, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return new(btcec.ModNScalar).Set(&sk.Key), nil
}

// RecoverSecret interpolates the constant term from at least t Shamir records.
// It reconstructs the private key in memory and exists for simulations and tests.
func RecoverSecret(shares []PortableKeyShare) (*btcec.ModNScalar, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares to recover from", ErrEmptyInput)
	}
	if len(shares) < int(shares[0].T) {
		return nil, insufficient(len(shares), int(shares[0].T))
	}

	points := QuorumPoints(shares)
	secret := new(btcec.ModNScalar)
	for _, share := range shares {
		x, err := share.Secret()
		if err != nil {
			return nil, err
		}
		lambda, err := LagrangeCoefficient(share.Point(), points)
		if err != nil {
			return nil, ParticipantError{share.I, err}
		}
		secret.Add(x.Mul(lambda))
	}

	return secret, nil
}
