package sharing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Polynomial over scalars, represented as a list of t coefficients, where t is the threshold.
// The constant term is in the first position and the highest degree coefficient is in the last position.
// All operations on the polynomial's coefficient are done modulo the scalar's group order.
type Polynomial []*btcec.ModNScalar

// makePolynomial returns [secret, r1, ..., r_{t-1}] with uniformly random r_k.
// A threshold of 0 is treated as 1, yielding the constant polynomial.
func makePolynomial(secret *btcec.ModNScalar, threshold uint16) (Polynomial, error) {
	degree := max(int(threshold), 1) - 1

	p := make(Polynomial, degree+1)
	p[0] = new(btcec.ModNScalar).Set(secret)

	for i := 1; i <= degree; i++ {
		r, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to sample coefficient %d: %w", i, err)
		}
		p[i] = new(btcec.ModNScalar).Set(&r.Key)
	}

	return p, nil
}

// Evaluate evaluates the polynomial p at point x using Horner's method.
func (p Polynomial) Evaluate(x *btcec.ModNScalar) *btcec.ModNScalar {
	// since value is an accumulator and starts with 0, we can skip multiplying by x, and start from the end
	value := new(btcec.ModNScalar).Set(p[len(p)-1])
	for i := len(p) - 2; i >= 0; i-- {
		value = value.Mul(x).Add(p[i])
	}

	return value
}

// shares evaluates p at the coordinates of indices 0..n-1.
func (p Polynomial) shares(n uint16) []*btcec.ModNScalar {
	out := make([]*btcec.ModNScalar, n)
	for i := range n {
		out[i] = p.Evaluate(EvaluationScalar(i))
	}
	return out
}

// GenerateShares splits secret with a fresh random polynomial of degree max(t,1)-1.
// Share k is the evaluation at EvaluationPoint(k).
func GenerateShares(secret *btcec.ModNScalar, t, n uint16) ([]*btcec.ModNScalar, error) {
	p, err := makePolynomial(secret, t)
	if err != nil {
		return nil, err
	}
	return p.shares(n), nil
}

// GenerateResharingPolynomial is GenerateShares over hex: it takes an additive share
// and returns the n sub-shares to be delivered to each party, in index order.
func GenerateResharingPolynomial(xHex string, t, n uint16) ([]string, error) {
	secret, err := DecodeScalar(xHex)
	if err != nil {
		return nil, err
	}

	shares, err := GenerateShares(secret, t, n)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(shares))
	for i, s := range shares {
		out[i] = EncodeScalar(s)
	}
	return out, nil
}

// Commitments is the tuple defining a Verifiable Secret Sharing commitment to a secret Polynomial,
// C_k = a_k·G.
type Commitments []*btcec.JacobianPoint

// Commit builds a Verifiable Secret Sharing vector Commitments to each of the coefficients
// (of threshold length which uniquely determines the polynomial).
func Commit(polynomial Polynomial) Commitments {
	commits := make(Commitments, len(polynomial))
	for i, coeff := range polynomial {
		commits[i] = basePoint(coeff)
	}
	return commits
}

// Evaluate computes Σ C_k·x^k with Horner's method in the point domain.
func (c Commitments) Evaluate(x *btcec.ModNScalar) *btcec.JacobianPoint {
	value := new(btcec.JacobianPoint)
	value.Set(c[len(c)-1])
	for i := len(c) - 2; i >= 0; i-- {
		scaled := new(btcec.JacobianPoint)
		btcec.ScalarMultNonConst(x, value, scaled)
		btcec.AddNonConst(scaled, c[i], value)
	}
	value.ToAffine()

	return value
}

// PublicShare is the commitment polynomial evaluated at the coordinate of index i.
func (c Commitments) PublicShare(i uint16) *btcec.JacobianPoint {
	return c.Evaluate(EvaluationScalar(i))
}

func (c Commitments) Hex() []string {
	out := make([]string, len(c))
	for i, pt := range c {
		out[i] = EncodePoint(pt)
	}
	return out
}
