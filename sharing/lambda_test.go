package sharing

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func TestLagrangeCoefficientsSumToOne(t *testing.T) {
	// interpolating the constant polynomial 1 at zero
	for _, points := range [][]uint64{{1}, {1, 2}, {1, 3, 5}, {2, 7, 9, 11}, {1, 2, 3, 4, 5, 6, 7, 8, 9, 10}} {
		sum := new(btcec.ModNScalar)
		for _, p := range points {
			lambda, err := LagrangeCoefficient(p, points)
			require.NoError(t, err)
			sum.Add(lambda)
		}
		require.True(t, sum.Equals(new(btcec.ModNScalar).SetInt(1)), "points %v", points)
	}
}

func TestLagrangeCoefficientKnownValues(t *testing.T) {
	// over {1,2}: λ1 = 2/(2-1) = 2, λ2 = 1/(1-2) = -1
	lambda1, err := LagrangeCoefficient(1, []uint64{1, 2})
	require.NoError(t, err)
	require.True(t, lambda1.Equals(new(btcec.ModNScalar).SetInt(2)))

	lambda2, err := LagrangeCoefficient(2, []uint64{2, 1})
	require.NoError(t, err)
	minusOne := new(btcec.ModNScalar).NegateVal(new(btcec.ModNScalar).SetInt(1))
	require.True(t, lambda2.Equals(minusOne))

	// a single point interpolates to itself
	alone, err := LagrangeCoefficient(4, []uint64{4})
	require.NoError(t, err)
	require.True(t, alone.Equals(new(btcec.ModNScalar).SetInt(1)))
}

func TestLagrangeCoefficientErrors(t *testing.T) {
	_, err := LagrangeCoefficient(1, []uint64{1, 2, 2})
	require.ErrorIs(t, err, ErrDuplicatePoint)

	_, err = LagrangeCoefficient(1, nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = LagrangeCoefficient(4, []uint64{1, 2, 3})
	require.ErrorIs(t, err, ErrMismatchedParticipant)

	_, err = LagrangeCoefficient(1, []uint64{0, 1, 2})
	require.ErrorIs(t, err, ErrMismatchedParticipant)
}

func TestLambdaRegistry(t *testing.T) {
	registry := NewLambdaRegistry()

	a, err := registry.GetOrNew(3, []uint64{1, 3, 5})
	require.NoError(t, err)
	b, err := registry.GetOrNew(3, []uint64{5, 1, 3})
	require.NoError(t, err)
	require.True(t, a.Equals(b))
	require.Equal(t, 1, registry.Len())

	direct, err := LagrangeCoefficient(3, []uint64{1, 3, 5})
	require.NoError(t, err)
	require.True(t, direct.Equals(a))

	// mutating a returned value must not poison the cache
	a.Mul(new(btcec.ModNScalar).SetInt(7))
	c, err := registry.GetOrNew(3, []uint64{1, 3, 5})
	require.NoError(t, err)
	require.True(t, direct.Equals(c))

	_, err = registry.GetOrNew(3, []uint64{1, 1, 3})
	require.ErrorIs(t, err, ErrDuplicatePoint)
	require.Equal(t, 1, registry.Len())
}

// f(x) = 7 + 2x + 5x² over GF(17), t = 3, n = 5
func TestToyPolynomialOverPrime17(t *testing.T) {
	p := big.NewInt(17)
	f := func(x int64) *big.Int {
		v := big.NewInt(7 + 2*x + 5*x*x)
		return v.Mod(v, p)
	}

	expected := []int64{14, 14, 7, 10, 6}
	for i, e := range expected {
		require.Equal(t, e, f(int64(i+1)).Int64(), "f(%d)", i+1)
	}

	// the coefficients at zero for {1,3,5} are the rationals 15/8, -5/4 and 3/8.
	// LagrangeCoefficient must agree with them in the scalar field, and the same
	// fractions taken mod 17 must give back the constant term.
	points := []uint64{1, 3, 5}
	fractions := map[uint64][2]int64{1: {15, 8}, 3: {-5, 4}, 5: {3, 8}}

	secret := new(big.Int)
	for _, xi := range points {
		frac := fractions[xi]

		lambda, err := LagrangeCoefficient(xi, points)
		require.NoError(t, err)
		got := new(btcec.ModNScalar).Mul2(lambda, new(btcec.ModNScalar).SetInt(uint32(frac[1])))
		want := new(btcec.ModNScalar).SetInt(uint32(abs(frac[0])))
		if frac[0] < 0 {
			want.Negate()
		}
		require.True(t, got.Equals(want), "lambda for %d", xi)

		l := big.NewInt(frac[0])
		l.Mul(l, new(big.Int).ModInverse(big.NewInt(frac[1]), p))
		secret.Add(secret, l.Mul(l, f(int64(xi))))
	}
	require.Equal(t, int64(7), secret.Mod(secret, p).Int64())
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// the same polynomial with integer values in the secp256k1 scalar field
func TestToyPolynomialOverCurveOrder(t *testing.T) {
	values := map[uint16]uint32{0: 14, 1: 31, 2: 58, 3: 95, 4: 142}

	poly := Polynomial{
		new(btcec.ModNScalar).SetInt(7),
		new(btcec.ModNScalar).SetInt(2),
		new(btcec.ModNScalar).SetInt(5),
	}
	for i, v := range values {
		require.True(t, poly.Evaluate(EvaluationScalar(i)).Equals(new(btcec.ModNScalar).SetInt(v)))
	}

	y := EncodePoint(basePoint(new(btcec.ModNScalar).SetInt(7)))
	quorum := make([]PortableKeyShare, 0, 3)
	for _, i := range []uint16{0, 2, 4} {
		quorum = append(quorum, PortableKeyShare{
			I: i, T: 3, N: 5,
			X: EncodeScalar(new(btcec.ModNScalar).SetInt(values[i])),
			Y: y,
		})
	}

	secret, err := RecoverSecret(quorum)
	require.NoError(t, err)
	require.True(t, secret.Equals(new(btcec.ModNScalar).SetInt(7)))

	params, err := ReconstructGlobalParams(quorum)
	require.NoError(t, err)
	require.NoError(t, params.VerifySharedPublicKey(y))
	require.Equal(t, EncodePoint(basePoint(new(btcec.ModNScalar).SetInt(2))), params.CommitmentsHex()[1])
	require.Equal(t, EncodePoint(basePoint(new(btcec.ModNScalar).SetInt(5))), params.CommitmentsHex()[2])
	require.Equal(t, EncodePoint(basePoint(new(btcec.ModNScalar).SetInt(31))), params.PublicSharesHex()[1])
}
