package keyshare

import (
	"encoding/json"
	"fmt"

	"fiatjaf.com/sharebridge/sharing"
)

// ThresholdShare is the key share of the VSS based stack, t-of-n Shamir.
// Parties are 0-based in "i", while "vss_setup.I" lists the 1-based evaluation points as scalars.
type ThresholdShare struct {
	Core ThresholdCore `json:"core"`

	raw map[string]json.RawMessage
}

type ThresholdCore struct {
	I               uint16    `json:"i"`
	SharedPublicKey string    `json:"shared_public_key"`
	PublicShares    []string  `json:"public_shares"`
	VSSSetup        *VSSSetup `json:"vss_setup,omitempty"`
	X               string    `json:"x"`

	raw map[string]json.RawMessage
}

type VSSSetup struct {
	MinSigners  uint16   `json:"min_signers"`
	I           []string `json:"I"`
	Commitments []string `json:"commitments,omitempty"`
}

func (s *ThresholdShare) UnmarshalJSON(b []byte) error {
	type plain ThresholdShare
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	return json.Unmarshal(b, &s.raw)
}

func (s ThresholdShare) MarshalJSON() ([]byte, error) {
	type plain ThresholdShare
	known, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return overlay(s.raw, known)
}

func (c *ThresholdCore) UnmarshalJSON(b []byte) error {
	type plain ThresholdCore
	if err := json.Unmarshal(b, (*plain)(c)); err != nil {
		return err
	}
	return json.Unmarshal(b, &c.raw)
}

func (c ThresholdCore) MarshalJSON() ([]byte, error) {
	type plain ThresholdCore
	known, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	return overlay(c.raw, known)
}

// NewThresholdShare builds a native share from scratch.
func NewThresholdShare(share sharing.PortableKeyShare, params *sharing.GlobalParams) (*ThresholdShare, error) {
	s := &ThresholdShare{Core: ThresholdCore{I: share.I}}
	if err := Embed(s, share, params); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ThresholdShare) Index() uint16 { return s.Core.I }
func (s *ThresholdShare) SecretHex() string { return s.Core.X }
func (s *ThresholdShare) SharedPublicKey() (string, error) { return s.Core.SharedPublicKey, nil }

func (s *ThresholdShare) SetSecret(x string) error {
	scalar, err := sharing.DecodeScalar(x)
	if err != nil {
		return err
	}
	s.Core.X = sharing.EncodeScalar(scalar)
	return nil
}

func (s *ThresholdShare) SetPublicShares(points []string) { s.Core.PublicShares = points }
func (s *ThresholdShare) SetSharedPublicKey(y string) { s.Core.SharedPublicKey = y }

func (s *ThresholdShare) SetCommitments(points []string) {
	if s.Core.VSSSetup == nil {
		s.Core.VSSSetup = &VSSSetup{}
	}
	s.Core.VSSSetup.Commitments = points
}

func (s *ThresholdShare) SetThreshold(t, n uint16) {
	if s.Core.VSSSetup == nil {
		s.Core.VSSSetup = &VSSSetup{}
	}
	s.Core.VSSSetup.MinSigners = t
	s.Core.VSSSetup.I = make([]string, n)
	for k := range n {
		s.Core.VSSSetup.I[k] = sharing.EncodeScalar(sharing.EvaluationScalar(k))
	}
}

// Threshold returns t and n as recorded in the share. Without a VSS setup the share is n-of-n.
func (s *ThresholdShare) Threshold() (t, n uint16) {
	n = uint16(len(s.Core.PublicShares))
	if s.Core.VSSSetup == nil {
		return n, n
	}
	return s.Core.VSSSetup.MinSigners, n
}

func (s *ThresholdShare) ToPortable() (sharing.PortableKeyShare, error) {
	t, n := s.Threshold()
	return Extract(s, t, n)
}

// UpdateThresholdShares re-embeds refreshed records into the native shares they came from.
// Every template must have a refreshed record with the same index. Public parameters are
// reconstructed once from the refreshed records and must reproduce their shared key, otherwise
// nothing is modified.
func UpdateThresholdShares(templates []*ThresholdShare, refreshed []sharing.PortableKeyShare) error {
	byIndex := make(map[uint16]sharing.PortableKeyShare, len(refreshed))
	for _, r := range refreshed {
		if _, ok := byIndex[r.I]; ok {
			return sharing.ParticipantError{Index: r.I, Err: fmt.Errorf("%w: refreshed twice", sharing.ErrDuplicatePoint)}
		}
		byIndex[r.I] = r
	}

	for _, tpl := range templates {
		if _, ok := byIndex[tpl.Index()]; !ok {
			return sharing.ParticipantError{
				Index: tpl.Index(),
				Err:   fmt.Errorf("%w: missing refreshed data for party", sharing.ErrMismatchedParticipant),
			}
		}
	}

	params, err := sharing.ReconstructGlobalParams(refreshed)
	if err != nil {
		return fmt.Errorf("failed to reconstruct public parameters: %w", err)
	}
	if err := params.VerifySharedPublicKey(refreshed[0].Y); err != nil {
		return err
	}

	for _, tpl := range templates {
		if err := Embed(tpl, byIndex[tpl.Index()], params); err != nil {
			return err
		}
	}

	return nil
}
