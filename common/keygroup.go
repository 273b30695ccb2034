package common

import (
	"fmt"

	"fiatjaf.com/sharebridge/sharing"
)

// KeyGroup describes one shared key and how it is currently split.
type KeyGroup struct {
	KeyID           string `json:"key_id" cbor:"1,keyasint"`
	SharedPublicKey string `json:"shared_public_key" cbor:"2,keyasint"`
	Threshold       uint16 `json:"threshold" cbor:"3,keyasint"`
	Parties         uint16 `json:"parties" cbor:"4,keyasint"`

	// sharing.Mode the key material was produced under
	Mode string `json:"mode" cbor:"5,keyasint"`
}

func (g KeyGroup) Validate() error {
	if g.Parties == 0 {
		return fmt.Errorf("key group has no parties")
	}
	if g.Threshold == 0 || g.Threshold > g.Parties {
		return fmt.Errorf("'threshold' (%d) is not valid for %d parties", g.Threshold, g.Parties)
	}

	id, err := KeyID(g.SharedPublicKey)
	if err != nil {
		return fmt.Errorf("'shared_public_key' ('%s') is not a valid point: %w", g.SharedPublicKey, err)
	}
	if id != g.KeyID {
		return fmt.Errorf("key id '%s' doesn't match shared public key, expected '%s'", g.KeyID, id)
	}

	return nil
}

// KeyGroupFromShares describes the key a set of Shamir records belongs to.
// Records must agree on t, n and the shared key.
func KeyGroupFromShares(shares []sharing.PortableKeyShare, mode sharing.Mode) (KeyGroup, error) {
	if len(shares) == 0 {
		return KeyGroup{}, sharing.ErrEmptyInput
	}

	first := shares[0]
	for _, s := range shares {
		if err := s.Validate(); err != nil {
			return KeyGroup{}, err
		}
		if s.T != first.T || s.N != first.N {
			return KeyGroup{}, sharing.ParticipantError{
				Index: s.I,
				Err:   fmt.Errorf("%w: %d-of-%d, expected %d-of-%d", sharing.ErrMismatchedParticipant, s.T, s.N, first.T, first.N),
			}
		}
	}

	params, err := sharing.ReconstructGlobalParams(shares)
	if err != nil {
		return KeyGroup{}, err
	}
	if err := params.VerifySharedPublicKey(first.Y); err != nil {
		return KeyGroup{}, err
	}

	y := params.SharedPublicKeyHex()
	id, err := KeyID(y)
	if err != nil {
		return KeyGroup{}, err
	}

	return KeyGroup{
		KeyID:           id,
		SharedPublicKey: y,
		Threshold:       first.T,
		Parties:         first.N,
		Mode:            mode.String(),
	}, nil
}
