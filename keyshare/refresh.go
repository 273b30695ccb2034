package keyshare

import (
	"fmt"

	"fiatjaf.com/sharebridge/sharing"
	"github.com/btcsuite/btcd/btcec/v2"
)

// RefreshChange is what a key refresh of the additive stack hands to one party: the change to its
// own secret and the change to every party's public share. The changes of all parties add up to
// zero, so the shared key stays the same.
type RefreshChange struct {
	Owner              uint16        `json:"owner"`
	SecretShareChange  string        `json:"secret_share_change"`
	PublicShareChanges []PublicEntry `json:"public_share_changes"`
}

// PublicDelta returns the change to the public share of owner, or nil when the refresh has none for it.
func (c RefreshChange) PublicDelta(owner uint16) (*btcec.JacobianPoint, error) {
	for _, entry := range c.PublicShareChanges {
		if entry.Owner != owner {
			continue
		}
		pt, err := sharing.DecodePoint(entry.Point)
		if err != nil {
			return nil, sharing.ParticipantError{Index: owner, Err: err}
		}
		return pt, nil
	}
	return nil, nil
}

// check makes sure the secret change matches the owner's public change and that the public
// changes cancel out.
func (c RefreshChange) check() (*btcec.ModNScalar, error) {
	delta, err := sharing.DecodeScalar(c.SecretShareChange)
	if err != nil {
		return nil, sharing.ParticipantError{Index: c.Owner, Err: err}
	}
	own, err := c.PublicDelta(c.Owner)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, sharing.ParticipantError{
			Index: c.Owner,
			Err:   fmt.Errorf("%w: refresh has no public change for its owner", sharing.ErrMismatchedParticipant),
		}
	}

	var expected btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(delta, &expected)
	if sharing.EncodePoint(&expected) != sharing.EncodePoint(own) {
		return nil, sharing.ParticipantError{
			Index: c.Owner,
			Err:   fmt.Errorf("%w: secret change doesn't match its public change", sharing.ErrInconsistentShares),
		}
	}

	sum := new(btcec.JacobianPoint)
	for _, entry := range c.PublicShareChanges {
		pt, err := sharing.DecodePoint(entry.Point)
		if err != nil {
			return nil, sharing.ParticipantError{Index: entry.Owner, Err: err}
		}
		next := new(btcec.JacobianPoint)
		btcec.AddNonConst(sum, pt, next)
		sum = next
	}
	if !isInfinity(sum) {
		return nil, fmt.Errorf("%w: public changes of the refresh don't cancel out", sharing.ErrSharedKeyMismatch)
	}

	return delta, nil
}

// ApplyRefresh moves the secret by the owner's change and every known public share by its own.
// Nothing is touched when the change is not for this share or doesn't check out.
func (s *AdditiveShare) ApplyRefresh(c RefreshChange) error {
	if c.Owner != s.Owner {
		return sharing.ParticipantError{
			Index: s.Owner,
			Err:   fmt.Errorf("%w: refresh is for party %d", sharing.ErrMismatchedParticipant, c.Owner),
		}
	}
	delta, err := c.check()
	if err != nil {
		return err
	}

	x, err := sharing.DecodeScalar(s.Secret)
	if err != nil {
		return sharing.ParticipantError{Index: s.Owner, Err: err}
	}
	x.Add(delta)

	public := make([]PublicEntry, len(s.Public))
	for k, entry := range s.Public {
		public[k] = entry
		change, err := c.PublicDelta(entry.Owner)
		if err != nil {
			return err
		}
		if change == nil {
			continue
		}
		pt, err := sharing.DecodePoint(entry.Point)
		if err != nil {
			return sharing.ParticipantError{Index: entry.Owner, Err: err}
		}
		var moved btcec.JacobianPoint
		btcec.AddNonConst(pt, change, &moved)
		public[k].Point = sharing.Ensure0x(sharing.EncodePoint(&moved))
	}

	s.Secret = sharing.Ensure0x(sharing.EncodeScalar(x))
	s.Public = public
	return nil
}

// NewRefresh draws random changes for every owner, adding up to zero, and returns the change each
// of them receives. The caller sees all of them, so this is for simulations and trusted dealers.
func NewRefresh(owners []uint16) ([]RefreshChange, error) {
	if len(owners) < 2 {
		return nil, fmt.Errorf("%w: a refresh needs at least 2 parties, got %d", sharing.ErrInsufficientShares, len(owners))
	}

	deltas := make([]*btcec.ModNScalar, len(owners))
	sum := new(btcec.ModNScalar)
	for k := range owners[1:] {
		d, err := sharing.NewSecret()
		if err != nil {
			return nil, err
		}
		deltas[k+1] = d
		sum.Add(d)
	}
	deltas[0] = sum.Negate()

	public := make([]PublicEntry, len(owners))
	for k, owner := range owners {
		var pt btcec.JacobianPoint
		btcec.ScalarBaseMultNonConst(deltas[k], &pt)
		public[k] = PublicEntry{Owner: owner, Point: sharing.Ensure0x(sharing.EncodePoint(&pt))}
	}

	changes := make([]RefreshChange, len(owners))
	for k, owner := range owners {
		changes[k] = RefreshChange{
			Owner:              owner,
			SecretShareChange:  sharing.Ensure0x(sharing.EncodeScalar(deltas[k])),
			PublicShareChanges: public,
		}
	}
	return changes, nil
}

func isInfinity(pt *btcec.JacobianPoint) bool {
	return (pt.X.IsZero() && pt.Y.IsZero()) || pt.Z.IsZero()
}
