package sharing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PointShare is a party's public share, x_i·G, tagged with its storage index.
type PointShare struct {
	Index uint16
	Point *btcec.JacobianPoint
}

// GlobalParams are the public values every party needs after shares change:
// the commitment to each coefficient and the public share of every index 0..n-1.
type GlobalParams struct {
	Commitments  Commitments
	PublicShares []*btcec.JacobianPoint
}

// ReconstructGlobalParams interpolates x_i·G over at least t Shamir shares and evaluates the
// resulting commitment polynomial at every index. t and n are taken from the first share.
func ReconstructGlobalParams(shares []PortableKeyShare) (*GlobalParams, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares to reconstruct from", ErrEmptyInput)
	}
	t, n := shares[0].T, shares[0].N
	if len(shares) < int(t) {
		return nil, insufficient(len(shares), int(t))
	}
	if err := checkAgreement(shares); err != nil {
		return nil, err
	}

	points := make([]PointShare, len(shares))
	for k, share := range shares {
		pt, err := share.PublicShare()
		if err != nil {
			return nil, err
		}
		points[k] = PointShare{Index: share.I, Point: pt}
	}

	return ReconstructFromPublicShares(points, t, n)
}

// ReconstructFromPublicShares is the reconstruction fed with public shares only, so it can run
// anywhere without access to private material.
//
// Points beyond t are used as a consistency check: every coefficient of degree t or higher must
// come out as the identity, otherwise the points are not on a single degree t-1 polynomial.
func ReconstructFromPublicShares(points []PointShare, t, n uint16) (*GlobalParams, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points to reconstruct from", ErrEmptyInput)
	}
	if len(points) < int(t) {
		return nil, insufficient(len(points), int(t))
	}
	for _, p := range points {
		if p.Index >= n {
			return nil, ParticipantError{p.Index, fmt.Errorf("%w: index out of range for n=%d", ErrMismatchedParticipant, n)}
		}
	}

	coeffs, err := interpolateCommitments(points)
	if err != nil {
		return nil, err
	}

	degree := max(int(t), 1)
	for k := degree; k < len(coeffs); k++ {
		if !isIdentity(coeffs[k]) {
			return nil, fmt.Errorf("%w: coefficient %d is not zero for threshold %d", ErrInconsistentShares, k, t)
		}
	}
	commitments := coeffs[:degree]

	params := &GlobalParams{
		Commitments:  commitments,
		PublicShares: make([]*btcec.JacobianPoint, n),
	}
	for target := range n {
		params.PublicShares[target] = commitments.PublicShare(target)
	}

	return params, nil
}

// interpolateCommitments returns the coefficients of the unique polynomial of degree len(points)-1
// through the given points, computed in the point domain.
//
// For every i the basis polynomial Π_{j≠i} (X - x_j) is expanded by synthetic division and scaled
// by 1/Π_{j≠i} (x_i - x_j); its k-th coefficient weights Y_i into C_k.
func interpolateCommitments(points []PointShare) (Commitments, error) {
	m := len(points)
	xs := make([]*btcec.ModNScalar, m)
	for k, p := range points {
		xs[k] = EvaluationScalar(p.Index)
	}

	coeffs := make(Commitments, m)
	for k := range coeffs {
		coeffs[k] = new(btcec.JacobianPoint)
	}

	basis := make([]btcec.ModNScalar, m)
	for i := range m {
		denominator := new(btcec.ModNScalar).SetInt(1)
		for j := range m {
			if j == i {
				continue
			}
			denominator.Mul(new(btcec.ModNScalar).NegateVal(xs[j]).Add(xs[i]))
		}
		if denominator.IsZero() {
			return nil, ParticipantError{
				points[i].Index,
				fmt.Errorf("%w: denominator vanishes, coordinates are repeated", ErrFieldInversionFailure),
			}
		}
		inverse := new(btcec.ModNScalar).InverseValNonConst(denominator)

		for k := range basis {
			basis[k].Zero()
		}
		basis[0].SetInt(1)
		for j := range m {
			if j == i {
				continue
			}
			negXj := new(btcec.ModNScalar).NegateVal(xs[j])
			for k := m - 1; k >= 1; k-- {
				// basis[k] = basis[k-1] - x_j·basis[k]
				next := new(btcec.ModNScalar).Mul2(negXj, &basis[k]).Add(&basis[k-1])
				basis[k].Set(next)
			}
			basis[0].Mul(negXj)
		}

		if isIdentity(points[i].Point) {
			continue
		}
		for k := range m {
			weight := new(btcec.ModNScalar).Mul2(&basis[k], inverse)
			term := new(btcec.JacobianPoint)
			btcec.ScalarMultNonConst(weight, points[i].Point, term)

			sum := new(btcec.JacobianPoint)
			btcec.AddNonConst(coeffs[k], term, sum)
			coeffs[k] = sum
		}
	}

	for _, c := range coeffs {
		c.ToAffine()
	}
	return coeffs, nil
}

// SharedPublicKey is C_0.
func (g *GlobalParams) SharedPublicKey() *btcec.JacobianPoint { return g.Commitments[0] }

// VerifySharedPublicKey compares C_0 with the key the shares claim to belong to.
// A mismatch means the shares are corrupted and nothing derived from them should be used.
func (g *GlobalParams) VerifySharedPublicKey(y string) error {
	expected, err := DecodePoint(y)
	if err != nil {
		return err
	}
	if !pointsEqual(expected, g.SharedPublicKey()) {
		return fmt.Errorf("%w: got %s, expected %s", ErrSharedKeyMismatch, EncodePoint(g.SharedPublicKey()), y)
	}
	return nil
}

// VerifyShare checks that x·G equals the public share recorded for the share's index.
func (g *GlobalParams) VerifyShare(share PortableKeyShare) error {
	if int(share.I) >= len(g.PublicShares) {
		return ParticipantError{share.I, fmt.Errorf("%w: no public share for this index", ErrMismatchedParticipant)}
	}
	pt, err := share.PublicShare()
	if err != nil {
		return err
	}
	if !pointsEqual(pt, g.PublicShares[share.I]) {
		return ParticipantError{share.I, fmt.Errorf("secret share doesn't match public share %s", EncodePoint(g.PublicShares[share.I]))}
	}
	return nil
}

// VerifyConsistency recomputes each public share as Σ_j C_j·(k+1)^j, one power at a time.
func (g *GlobalParams) VerifyConsistency() error {
	for k, expected := range g.PublicShares {
		x := EvaluationScalar(uint16(k))
		power := new(btcec.ModNScalar).SetInt(1)
		sum := new(btcec.JacobianPoint)
		for _, c := range g.Commitments {
			term := new(btcec.JacobianPoint)
			btcec.ScalarMultNonConst(power, c, term)
			next := new(btcec.JacobianPoint)
			btcec.AddNonConst(sum, term, next)
			sum = next
			power.Mul(x)
		}
		sum.ToAffine()
		if !pointsEqual(sum, expected) {
			return ParticipantError{uint16(k), fmt.Errorf("%w: stale public share", ErrInconsistentShares)}
		}
	}
	return nil
}

func (g *GlobalParams) SharedPublicKeyHex() string { return EncodePoint(g.SharedPublicKey()) }
func (g *GlobalParams) CommitmentsHex() []string { return g.Commitments.Hex() }

func (g *GlobalParams) PublicSharesHex() []string {
	out := make([]string, len(g.PublicShares))
	for i, pt := range g.PublicShares {
		out[i] = EncodePoint(pt)
	}
	return out
}

// DecodeGlobalParams parses the hex views produced by CommitmentsHex and PublicSharesHex.
func DecodeGlobalParams(commitments, publicShares []string) (*GlobalParams, error) {
	if len(commitments) == 0 {
		return nil, fmt.Errorf("%w: no commitments", ErrEmptyInput)
	}
	g := &GlobalParams{
		Commitments:  make(Commitments, len(commitments)),
		PublicShares: make([]*btcec.JacobianPoint, len(publicShares)),
	}
	for k, c := range commitments {
		pt, err := DecodePoint(c)
		if err != nil {
			return nil, fmt.Errorf("commitment %d: %w", k, err)
		}
		g.Commitments[k] = pt
	}
	for k, p := range publicShares {
		pt, err := DecodePoint(p)
		if err != nil {
			return nil, ParticipantError{uint16(k), err}
		}
		g.PublicShares[k] = pt
	}
	return g, nil
}
