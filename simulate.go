package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/keyshare"
	"fiatjaf.com/sharebridge/sharing"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/urfave/cli/v3"
)

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "runs a full in-memory round trip between additive and Shamir sharing and checks every step",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "threshold",
				Usage: "threshold of the Shamir sharing",
				Value: 2,
			},
			&cli.UintFlag{
				Name:  "parties",
				Usage: "number of parties",
				Value: 3,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := setupLogging(c); err != nil {
				return err
			}

			threshold, err := uint16Flag(c, "threshold")
			if err != nil {
				return err
			}
			parties, err := uint16Flag(c, "parties")
			if err != nil {
				return err
			}

			res, err := runSimulation(ctx, threshold, parties)
			if err != nil {
				return err
			}
			return writeOutput("-", res)
		},
	}
}

type simulationResult struct {
	KeyID           string        `json:"key_id"`
	SharedPublicKey string        `json:"shared_public_key"`
	Threshold       uint16        `json:"threshold"`
	Parties         uint16        `json:"parties"`
	Quorum          []uint16      `json:"quorum"`
	Took            time.Duration `json:"took"`
}

// runSimulation plays every party at once: an additive key generation, resharing into t-of-n,
// parameter reconstruction, projection into native shares, signing-quorum conversion and a refresh.
func runSimulation(ctx context.Context, t, n uint16) (*simulationResult, error) {
	start := time.Now()
	if n == 0 || t == 0 || t > n {
		return nil, fmt.Errorf("can't simulate a %d-of-%d sharing", t, n)
	}

	// additive key generation, each party picks its own secret
	secret := new(btcec.ModNScalar)
	secrets := make([]*btcec.ModNScalar, n)
	for i := range n {
		x, err := sharing.NewSecret()
		if err != nil {
			return nil, err
		}
		secrets[i] = x
		secret.Add(x)
	}
	if secret.IsZero() {
		return nil, fmt.Errorf("parties generated a zero key")
	}
	var yPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(secret, &yPoint)
	y := sharing.EncodePoint(&yPoint)

	additive := make([]sharing.PortableKeyShare, n)
	for i, x := range secrets {
		additive[i] = sharing.PortableKeyShare{I: uint16(i), T: n, N: n, X: sharing.EncodeScalar(x), Y: y}
	}
	id, err := common.KeyID(y)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("key", id).Logger()
	logger.Debug().Uint16("parties", n).Msg("additive key generated")

	if n > 1 {
		if err := refreshAdditive(additive); err != nil {
			return nil, fmt.Errorf("refreshing additive shares: %w", err)
		}
		logger.Debug().Msg("additive shares refreshed")
	}

	timeout := s.ResharingTimeout
	if timeout <= 0 {
		timeout = defaultResharingTimeout
	}
	resharing := sharing.Resharing{Threshold: t, Mode: sharing.TrustedDealer}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	shares, err := resharing.Run(rctx, additive)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resharing: %w", err)
	}

	params, err := sharing.ReconstructGlobalParams(shares)
	if err != nil {
		return nil, fmt.Errorf("reconstructing: %w", err)
	}
	if err := params.VerifySharedPublicKey(y); err != nil {
		return nil, err
	}
	if err := params.VerifyConsistency(); err != nil {
		return nil, err
	}
	logger.Debug().Uint16("threshold", t).Msg("reshared and reconstructed")

	natives := make([]*keyshare.ThresholdShare, n)
	for i, share := range shares {
		native, err := keyshare.NewThresholdShare(share, params)
		if err != nil {
			return nil, err
		}
		back, err := native.ToPortable()
		if err != nil {
			return nil, err
		}
		if back != share {
			return nil, sharing.ParticipantError{
				Index: share.I,
				Err:   fmt.Errorf("%w: native share doesn't project back to its record", sharing.ErrMismatchedParticipant),
			}
		}
		natives[i] = native
	}

	quorum := make([]uint16, 0, t)
	for _, k := range rand.Perm(int(n))[:t] {
		quorum = append(quorum, uint16(k))
	}
	slices.Sort(quorum)

	signers := make([]sharing.PortableKeyShare, 0, t)
	for _, i := range quorum {
		signers = append(signers, shares[i])
	}
	signing, err := sharing.QuorumToAdditive(signers)
	if err != nil {
		return nil, err
	}
	sum, err := sharing.SumShares(signing)
	if err != nil {
		return nil, err
	}
	if !sum.Equals(secret) {
		return nil, fmt.Errorf("%w: quorum %v doesn't add up to the key", sharing.ErrSharedKeyMismatch, quorum)
	}
	logger.Debug().Uints16("quorum", quorum).Msg("quorum converted to additive")

	// refresh: every party goes additive again and reshares with the same threshold
	everybody, err := sharing.QuorumToAdditive(shares)
	if err != nil {
		return nil, err
	}
	rctx, cancel = context.WithTimeout(ctx, timeout)
	refreshed, err := resharing.Run(rctx, everybody)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("refreshing: %w", err)
	}
	if err := keyshare.UpdateThresholdShares(natives, refreshed); err != nil {
		return nil, err
	}

	recovered, err := sharing.RecoverSecret(refreshed)
	if err != nil {
		return nil, err
	}
	if !recovered.Equals(secret) {
		return nil, fmt.Errorf("%w: refreshed shares hold another key", sharing.ErrSharedKeyMismatch)
	}
	for _, native := range natives {
		if native.Core.SharedPublicKey != y {
			return nil, sharing.ParticipantError{Index: native.Index(), Err: sharing.ErrSharedKeyMismatch}
		}
	}
	secret.Zero()

	res := &simulationResult{
		KeyID:           id,
		SharedPublicKey: y,
		Threshold:       t,
		Parties:         n,
		Quorum:          quorum,
		Took:            time.Since(start),
	}
	logger.Info().Dur("took", res.Took).Msg("simulation passed")
	return res, nil
}

// refreshAdditive runs a key refresh of the additive stack over every share in place.
func refreshAdditive(additive []sharing.PortableKeyShare) error {
	natives := make([]*keyshare.AdditiveShare, len(additive))
	for k, share := range additive {
		native, err := keyshare.NewAdditiveShare(share)
		if err != nil {
			return err
		}
		natives[k] = native
	}
	if err := keyshare.AggregatePublic(natives); err != nil {
		return err
	}

	changes, err := keyshare.NewRefresh(sharing.PortableKeyShares(additive).Indices())
	if err != nil {
		return err
	}
	for k, native := range natives {
		if err := native.ApplyRefresh(changes[k]); err != nil {
			return err
		}
		additive[k].X = native.SecretHex()
	}
	return nil
}
