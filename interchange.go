package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/keyshare"
	"fiatjaf.com/sharebridge/sharing"
	"fiatjaf.com/sharebridge/store"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/urfave/cli/v3"
)

const (
	formatPortable  = "portable"
	formatThreshold = "threshold"
	formatAdditive  = "additive"
)

var formats = []string{formatPortable, formatThreshold, formatAdditive}

func formatFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: usage + ": portable, threshold or additive",
		Value: formatPortable,
	}
}

func kindFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "kind",
		Usage: "which sharing the records are in: shamir or additive",
		Value: common.KindShamir,
	}
}

func checkFormatAndKind(format, kind string) error {
	if !slices.Contains(formats, format) {
		return fmt.Errorf("unknown format '%s'", format)
	}
	if !slices.Contains(common.Kinds, kind) {
		return fmt.Errorf("unknown kind '%s'", kind)
	}
	switch {
	case format == formatThreshold && kind != common.KindShamir:
		return fmt.Errorf("threshold shares can only hold shamir records")
	case format == formatAdditive && kind != common.KindAdditive:
		return fmt.Errorf("additive shares can only hold additive records")
	}
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "reads key share records and stores them under their key",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			formatFlag("format of the input"),
			kindFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			format := c.String("format")
			kind := c.String("kind")
			if format == formatAdditive && !c.IsSet("kind") {
				kind = common.KindAdditive
			}
			if err := checkFormatAndKind(format, kind); err != nil {
				return err
			}

			b, err := readInput(c.Args().First())
			if err != nil {
				return err
			}

			shares, err := parseRecords(format, b)
			if err != nil {
				return err
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			var group common.KeyGroup
			switch kind {
			case common.KindShamir:
				group, err = importShamir(db, shares, mode(c))
			case common.KindAdditive:
				group, err = importAdditive(db, shares, mode(c))
			}
			if err != nil {
				return err
			}

			if err := db.SaveShares(group.KeyID, kind, shares); err != nil {
				return fmt.Errorf("failed to save shares: %w", err)
			}

			log.Info().Str("key", group.KeyID).Str("kind", kind).Int("records", len(shares)).Msg("imported")
			return nil
		},
	}
}

func parseRecords(format string, b []byte) ([]sharing.PortableKeyShare, error) {
	var shares []sharing.PortableKeyShare

	switch format {
	case formatPortable:
		list, err := decodeList[sharing.PortableKeyShare](b)
		if err != nil {
			return nil, fmt.Errorf("invalid key share records: %w", err)
		}
		shares = list
	case formatThreshold:
		list, err := decodeList[keyshare.ThresholdShare](b)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold shares: %w", err)
		}
		for _, native := range list {
			share, err := native.ToPortable()
			if err != nil {
				return nil, err
			}
			shares = append(shares, share)
		}
	case formatAdditive:
		list, err := decodeList[keyshare.AdditiveShare](b)
		if err != nil {
			return nil, fmt.Errorf("invalid additive shares: %w", err)
		}
		for _, native := range list {
			share, err := native.ToPortable()
			if err != nil {
				return nil, err
			}
			shares = append(shares, share)
		}
	}

	if len(shares) == 0 {
		return nil, sharing.ErrEmptyInput
	}
	// other libraries may hand us 0x prefixes or uncompressed points
	for k, share := range shares {
		normalized, err := share.Normalized()
		if err != nil {
			return nil, err
		}
		if err := normalized.Validate(); err != nil {
			return nil, err
		}
		shares[k] = normalized
	}
	return shares, nil
}

// importShamir checks the records against each other and against what we already know of the key.
func importShamir(db *store.Store, shares []sharing.PortableKeyShare, m sharing.Mode) (common.KeyGroup, error) {
	first := shares[0]
	id, err := common.KeyID(first.Y)
	if err != nil {
		return common.KeyGroup{}, err
	}

	existing, err := db.Group(id)
	if err == nil {
		// a single party's record can't be checked against anything but the stored parameters
		params, err := db.Params(id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return common.KeyGroup{}, err
		}
		for _, share := range shares {
			if share.T != existing.Threshold || share.N != existing.Parties {
				return common.KeyGroup{}, sharing.ParticipantError{
					Index: share.I,
					Err: fmt.Errorf("%w: %d-of-%d, key is %d-of-%d",
						sharing.ErrMismatchedParticipant, share.T, share.N, existing.Threshold, existing.Parties),
				}
			}
			if params != nil {
				if err := params.VerifyShare(share); err != nil {
					return common.KeyGroup{}, err
				}
			}
		}
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return common.KeyGroup{}, err
	}

	if len(shares) < int(first.T) {
		// not enough to reconstruct anything, trust the record's own description
		group := common.KeyGroup{KeyID: id, SharedPublicKey: first.Y, Threshold: first.T, Parties: first.N, Mode: m.String()}
		for _, share := range shares[1:] {
			if share.Y != first.Y || share.T != first.T || share.N != first.N {
				return common.KeyGroup{}, sharing.ParticipantError{Index: share.I, Err: sharing.ErrMismatchedParticipant}
			}
		}
		return group, db.SaveGroup(group)
	}

	group, err := common.KeyGroupFromShares(shares, m)
	if err != nil {
		return common.KeyGroup{}, err
	}
	params, err := sharing.ReconstructGlobalParams(shares)
	if err != nil {
		return common.KeyGroup{}, err
	}
	if err := db.SaveGroup(group); err != nil {
		return common.KeyGroup{}, err
	}
	return group, db.SaveParams(group.KeyID, params)
}

// importAdditive accepts additive records. When the whole set is given their secrets must add up
// to the shared key.
func importAdditive(db *store.Store, shares []sharing.PortableKeyShare, m sharing.Mode) (common.KeyGroup, error) {
	first := shares[0]
	for _, share := range shares[1:] {
		if share.Y != first.Y || share.N != first.N {
			return common.KeyGroup{}, sharing.ParticipantError{Index: share.I, Err: sharing.ErrMismatchedParticipant}
		}
	}

	if len(shares) == int(first.T) {
		sum, err := sharing.SumShares(shares)
		if err != nil {
			return common.KeyGroup{}, err
		}
		var got btcec.JacobianPoint
		btcec.ScalarBaseMultNonConst(sum, &got)
		if err := verifyPoint(first.Y, &got); err != nil {
			return common.KeyGroup{}, err
		}
	}

	id, err := common.KeyID(first.Y)
	if err != nil {
		return common.KeyGroup{}, err
	}
	existing, err := db.Group(id)
	if err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return common.KeyGroup{}, err
	}

	group := common.KeyGroup{KeyID: id, SharedPublicKey: first.Y, Threshold: first.N, Parties: first.N, Mode: m.String()}
	return group, db.SaveGroup(group)
}

func verifyPoint(expected string, got *btcec.JacobianPoint) error {
	y, err := sharing.DecodePoint(expected)
	if err != nil {
		return err
	}
	if sharing.EncodePoint(y) != sharing.EncodePoint(got) {
		return fmt.Errorf("%w: records add up to %s, expected %s",
			sharing.ErrSharedKeyMismatch, sharing.EncodePoint(got), sharing.EncodePoint(y))
	}
	return nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "writes the stored records of a key, as interchange records or native shares",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key",
				Usage:    "key id as shown by 'list'",
				Required: true,
			},
			formatFlag("format of the output"),
			kindFlag(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "where to write, '-' for stdout",
				Value: "-",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			format := c.String("format")
			kind := c.String("kind")
			if format == formatAdditive && !c.IsSet("kind") {
				kind = common.KindAdditive
			}
			if err := checkFormatAndKind(format, kind); err != nil {
				return err
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			shares, err := db.Shares(id, kind)
			if err != nil {
				return err
			}

			var out any
			switch format {
			case formatPortable:
				out = sharing.PortableKeyShares(shares)
			case formatThreshold:
				params, err := db.Params(id)
				if err != nil {
					return fmt.Errorf("public parameters are needed for threshold shares, run 'reconstruct' first: %w", err)
				}
				natives := make([]*keyshare.ThresholdShare, len(shares))
				for k, share := range shares {
					natives[k], err = keyshare.NewThresholdShare(share, params)
					if err != nil {
						return err
					}
				}
				out = natives
			case formatAdditive:
				natives := make([]*keyshare.AdditiveShare, len(shares))
				for k, share := range shares {
					natives[k], err = keyshare.NewAdditiveShare(share)
					if err != nil {
						return err
					}
				}
				if err := keyshare.AggregatePublic(natives); err != nil {
					return err
				}
				out = natives
			}

			log.Debug().Str("key", id).Str("format", format).Int("records", len(shares)).Msg("exporting")
			return writeOutput(c.String("out"), out)
		},
	}
}
