package keyshare

import (
	"encoding/json"
	"fmt"
	"slices"

	"fiatjaf.com/sharebridge/sharing"
	"github.com/btcsuite/btcd/btcec/v2"
)

// AdditiveShare is the key share of the n-of-n additive stack. Hex values carry a 0x prefix,
// and the shared key is not stored: it is the sum of the public list.
type AdditiveShare struct {
	Owner  uint16        `json:"owner"`
	Secret string        `json:"secret"`
	Public []PublicEntry `json:"public"`

	raw map[string]json.RawMessage
}

// PublicEntry is encoded as a two element array, [owner, point].
type PublicEntry struct {
	Owner uint16
	Point string
}

func (e PublicEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Owner, e.Point})
}

func (e *PublicEntry) UnmarshalJSON(b []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("public entry must have 2 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &e.Owner); err != nil {
		return fmt.Errorf("invalid public entry owner: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Point); err != nil {
		return fmt.Errorf("invalid public entry point: %w", err)
	}
	return nil
}

func (s *AdditiveShare) UnmarshalJSON(b []byte) error {
	type plain AdditiveShare
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	return json.Unmarshal(b, &s.raw)
}

func (s AdditiveShare) MarshalJSON() ([]byte, error) {
	type plain AdditiveShare
	known, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return overlay(s.raw, known)
}

// NewAdditiveShare builds a native share knowing only its own public entry.
// Use AggregatePublic to let every party learn about the others.
func NewAdditiveShare(share sharing.PortableKeyShare) (*AdditiveShare, error) {
	pub, err := share.PublicShare()
	if err != nil {
		return nil, err
	}

	s := &AdditiveShare{Owner: share.I}
	if err := s.SetSecret(share.X); err != nil {
		return nil, sharing.ParticipantError{Index: share.I, Err: err}
	}
	s.Public = []PublicEntry{{Owner: share.I, Point: sharing.Ensure0x(sharing.EncodePoint(pub))}}
	return s, nil
}

func (s *AdditiveShare) Index() uint16     { return s.Owner }
func (s *AdditiveShare) SecretHex() string { return sharing.Strip0x(s.Secret) }

// SharedPublicKey sums the public list.
func (s *AdditiveShare) SharedPublicKey() (string, error) {
	if len(s.Public) == 0 {
		return "", fmt.Errorf("%w: empty public list", sharing.ErrEmptyInput)
	}

	sum := new(btcec.JacobianPoint)
	for _, entry := range s.Public {
		pt, err := sharing.DecodePoint(entry.Point)
		if err != nil {
			return "", sharing.ParticipantError{Index: entry.Owner, Err: err}
		}
		next := new(btcec.JacobianPoint)
		btcec.AddNonConst(sum, pt, next)
		sum = next
	}
	return sharing.EncodePoint(sum), nil
}

func (s *AdditiveShare) SetSecret(x string) error {
	scalar, err := sharing.DecodeScalar(x)
	if err != nil {
		return err
	}
	s.Secret = sharing.Ensure0x(sharing.EncodeScalar(scalar))
	return nil
}

func (s *AdditiveShare) SetPublicShares(points []string) {
	s.Public = make([]PublicEntry, len(points))
	for k, pt := range points {
		s.Public[k] = PublicEntry{Owner: uint16(k), Point: sharing.Ensure0x(pt)}
	}
}

// additive shares have no polynomial, and their shared key follows from the public list
func (s *AdditiveShare) SetCommitments([]string)  {}
func (s *AdditiveShare) SetSharedPublicKey(string) {}

// ToPortable uses the size of the public list as threshold. When owners are not contiguous,
// as for a signing quorum cut out of a larger group, n is stretched to fit the highest owner.
func (s *AdditiveShare) ToPortable() (sharing.PortableKeyShare, error) {
	t := uint16(len(s.Public))
	n := t
	for _, entry := range s.Public {
		n = max(n, entry.Owner+1)
	}
	return Extract(s, t, n)
}

// AggregatePublic gives every share the public entries of all the others, ordered by owner.
// Two different points for the same owner are an error.
func AggregatePublic(shares []*AdditiveShare) error {
	merged := make(map[uint16]string)
	for _, s := range shares {
		for _, entry := range s.Public {
			point := sharing.Ensure0x(entry.Point)
			if existing, ok := merged[entry.Owner]; ok && existing != point {
				return sharing.ParticipantError{
					Index: entry.Owner,
					Err:   fmt.Errorf("%w: conflicting public shares %s and %s", sharing.ErrMismatchedParticipant, existing, point),
				}
			}
			merged[entry.Owner] = point
		}
	}

	owners := make([]uint16, 0, len(merged))
	for owner := range merged {
		owners = append(owners, owner)
	}
	slices.Sort(owners)

	for _, s := range shares {
		s.Public = make([]PublicEntry, len(owners))
		for k, owner := range owners {
			s.Public[k] = PublicEntry{Owner: owner, Point: merged[owner]}
		}
	}
	return nil
}
