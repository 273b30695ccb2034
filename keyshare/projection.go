// Package keyshare maps the native key share objects of the two threshold stacks to and from
// sharing.PortableKeyShare. It only ever touches the fields listed in Projection.
package keyshare

import (
	"fmt"

	"fiatjaf.com/sharebridge/sharing"
)

// Projection is the part of a native key share that conversions read and overwrite.
// Everything else a library keeps in its share is left as it was.
type Projection interface {
	// Index is the 0-based party index, whatever base the library uses natively.
	Index() uint16
	SecretHex() string
	SharedPublicKey() (string, error)

	SetSecret(x string) error
	SetPublicShares(points []string)
	SetCommitments(points []string)
	SetSharedPublicKey(y string)
}

// ThresholdSetter is implemented by projections that also record the sharing threshold.
type ThresholdSetter interface {
	SetThreshold(t, n uint16)
}

// Extract builds an interchange record out of a native share.
func Extract(p Projection, t, n uint16) (sharing.PortableKeyShare, error) {
	x, err := sharing.DecodeScalar(p.SecretHex())
	if err != nil {
		return sharing.PortableKeyShare{}, sharing.ParticipantError{Index: p.Index(), Err: err}
	}
	yHex, err := p.SharedPublicKey()
	if err != nil {
		return sharing.PortableKeyShare{}, sharing.ParticipantError{Index: p.Index(), Err: err}
	}
	y, err := sharing.DecodePoint(yHex)
	if err != nil {
		return sharing.PortableKeyShare{}, sharing.ParticipantError{Index: p.Index(), Err: err}
	}

	share := sharing.PortableKeyShare{
		I: p.Index(),
		T: t,
		N: n,
		X: sharing.EncodeScalar(x),
		Y: sharing.EncodePoint(y),
	}
	return share, share.Validate()
}

// Embed writes a processed record back. With params the public share list, the commitments and
// the shared key are replaced too, otherwise only the secret and the shared key are.
func Embed(p Projection, share sharing.PortableKeyShare, params *sharing.GlobalParams) error {
	if p.Index() != share.I {
		return sharing.ParticipantError{
			Index: p.Index(),
			Err:   fmt.Errorf("%w: got the record for %d", sharing.ErrMismatchedParticipant, share.I),
		}
	}

	if err := p.SetSecret(share.X); err != nil {
		return sharing.ParticipantError{Index: share.I, Err: err}
	}

	if params == nil {
		p.SetSharedPublicKey(share.Y)
	} else {
		p.SetPublicShares(params.PublicSharesHex())
		p.SetCommitments(params.CommitmentsHex())
		p.SetSharedPublicKey(params.SharedPublicKeyHex())
	}

	if ts, ok := p.(ThresholdSetter); ok {
		ts.SetThreshold(share.T, share.N)
	}

	return nil
}
