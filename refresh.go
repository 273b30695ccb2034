package main

import (
	"context"
	"fmt"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/keyshare"
	"fiatjaf.com/sharebridge/sharing"
	"github.com/urfave/cli/v3"
)

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "applies the output of an additive key refresh to the stored additive shares",
		ArgsUsage: "<changes>...",
		Description: "every file holds one or more refresh changes as handed to each party, " +
			"with the party's secret change and the public changes of everybody",
		Flags: []cli.Flag{
			keyFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("give at least one file with refresh changes")
			}

			changes := make(map[uint16]keyshare.RefreshChange)
			for _, path := range c.Args().Slice() {
				b, err := readInput(path)
				if err != nil {
					return err
				}
				list, err := decodeList[keyshare.RefreshChange](b)
				if err != nil {
					return fmt.Errorf("invalid refresh change in %s: %w", path, err)
				}
				for _, change := range list {
					if _, ok := changes[change.Owner]; ok {
						return sharing.ParticipantError{Index: change.Owner, Err: sharing.ErrDuplicatePoint}
					}
					changes[change.Owner] = change
				}
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			additive, err := db.Shares(id, common.KindAdditive)
			if err != nil {
				return err
			}

			refreshed, err := applyRefresh(additive, changes)
			if err != nil {
				return err
			}
			if err := db.SaveShares(id, common.KindAdditive, refreshed); err != nil {
				return fmt.Errorf("failed to save refreshed shares: %w", err)
			}

			log.Info().
				Str("key", id).
				Uints16("indices", sharing.PortableKeyShares(refreshed).Indices()).
				Msg("refreshed additive shares")
			return nil
		},
	}
}

// applyRefresh moves every held record by its owner's change. Either all of them move or none do.
func applyRefresh(
	additive []sharing.PortableKeyShare,
	changes map[uint16]keyshare.RefreshChange,
) ([]sharing.PortableKeyShare, error) {
	refreshed := make([]sharing.PortableKeyShare, len(additive))
	for k, share := range additive {
		change, ok := changes[share.I]
		if !ok {
			return nil, sharing.ParticipantError{
				Index: share.I,
				Err:   fmt.Errorf("%w: no refresh change for this party", sharing.ErrMismatchedParticipant),
			}
		}

		native, err := keyshare.NewAdditiveShare(share)
		if err != nil {
			return nil, err
		}
		if err := native.ApplyRefresh(change); err != nil {
			return nil, err
		}

		share.X = native.SecretHex()
		refreshed[k] = share
	}
	return refreshed, nil
}
