package sharing

import (
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
)

//easyjson:json
// PortableKeyShare is the library-agnostic share every component reads and writes.
//
// I is 0-based, X is 64 hex chars without prefix, Y is the compressed shared public key.
// Shamir records carry the real threshold in T, additive records have T == N.
type PortableKeyShare struct {
	I uint16 `json:"i"`
	T uint16 `json:"t"`
	N uint16 `json:"n"`
	X string `json:"x"`
	Y string `json:"y"`
}

func (p PortableKeyShare) Secret() (*btcec.ModNScalar, error) {
	s, err := DecodeScalar(p.X)
	if err != nil {
		return nil, ParticipantError{p.I, err}
	}
	return s, nil
}

func (p PortableKeyShare) PublicKey() (*btcec.JacobianPoint, error) {
	pt, err := DecodePoint(p.Y)
	if err != nil {
		return nil, ParticipantError{p.I, err}
	}
	return pt, nil
}

// Point is the evaluation coordinate of this share.
func (p PortableKeyShare) Point() uint64 { return EvaluationPoint(p.I) }

// PublicShare is x·G.
func (p PortableKeyShare) PublicShare() (*btcec.JacobianPoint, error) {
	s, err := p.Secret()
	if err != nil {
		return nil, err
	}
	return basePoint(s), nil
}

// Validate checks the encodings and that the index fits in n. y must be compressed.
func (p PortableKeyShare) Validate() error {
	if p.N == 0 {
		return ParticipantError{p.I, fmt.Errorf("%w: n is zero", ErrMismatchedParticipant)}
	}
	if p.I >= p.N {
		return ParticipantError{p.I, fmt.Errorf("%w: index out of range for n=%d", ErrMismatchedParticipant, p.N)}
	}
	if p.T > p.N {
		return ParticipantError{p.I, fmt.Errorf("threshold %d is larger than n=%d", p.T, p.N)}
	}
	if _, err := p.Secret(); err != nil {
		return err
	}
	if _, err := DecodeCompressedPoint(p.Y); err != nil {
		return ParticipantError{p.I, err}
	}
	return nil
}

// Normalized re-encodes x and y into their canonical form: no prefix, 64 hex chars for x
// and a compressed y. Uncompressed and hybrid points from other libraries come out compressed.
func (p PortableKeyShare) Normalized() (PortableKeyShare, error) {
	s, err := p.Secret()
	if err != nil {
		return p, err
	}
	pk, err := p.PublicKey()
	if err != nil {
		return p, err
	}
	p.X = EncodeScalar(s)
	p.Y = EncodePoint(pk)
	return p, nil
}

//easyjson:json
type PortableKeyShares []PortableKeyShare

// Indices returns the storage index of every record, in order.
func (ps PortableKeyShares) Indices() []uint16 {
	out := make([]uint16, len(ps))
	for k, p := range ps {
		out[k] = p.I
	}
	return out
}

// QuorumPoints returns the evaluation coordinates of a set of shares.
func QuorumPoints(shares []PortableKeyShare) []uint64 {
	return EvaluationPoints(PortableKeyShares(shares).Indices())
}

// Sorted returns a copy ordered by index.
func (ps PortableKeyShares) Sorted() PortableKeyShares {
	sorted := slices.Clone(ps)
	slices.SortFunc(sorted, func(a, b PortableKeyShare) int { return int(a.I) - int(b.I) })
	return sorted
}

// checkAgreement enforces that every record describes the same key: same n and y.
func checkAgreement(shares []PortableKeyShare) error {
	if len(shares) == 0 {
		return ErrEmptyInput
	}
	first, err := shares[0].PublicKey()
	if err != nil {
		return err
	}
	for _, s := range shares[1:] {
		if s.N != shares[0].N {
			return ParticipantError{s.I, fmt.Errorf("%w: n=%d, expected %d", ErrMismatchedParticipant, s.N, shares[0].N)}
		}
		pk, err := s.PublicKey()
		if err != nil {
			return err
		}
		if !pointsEqual(pk, first) {
			return ParticipantError{s.I, fmt.Errorf("%w: shared public key %s differs from %s", ErrMismatchedParticipant, s.Y, shares[0].Y)}
		}
	}
	return nil
}
