package main

import (
	"context"
	"fmt"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/sharing"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/urfave/cli/v3"
)

func dealCommand() *cli.Command {
	return &cli.Command{
		Name:  "deal",
		Usage: "splits a new (or given) private key into Shamir shares and stores them",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "threshold",
				Usage: "minimum number of parties needed to sign",
				Value: 2,
			},
			&cli.UintFlag{
				Name:  "parties",
				Usage: "total number of parties",
				Value: 3,
			},
			&cli.StringFlag{
				Name:  "secret",
				Usage: "hex private key to split, a random one is generated if not given",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "where to write the share records, '-' for stdout",
				Value: "-",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := requireTrustedDealer(c); err != nil {
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

			var secret *btcec.ModNScalar
			if hex := c.String("secret"); hex != "" {
				secret, err = sharing.DecodeScalar(hex)
				if err != nil {
					return fmt.Errorf("invalid secret: %w", err)
				}
			} else {
				secret, err = sharing.NewSecret()
				if err != nil {
					return err
				}
			}

			shares, params, err := sharing.TrustedKeyDeal(secret, threshold, parties)
			if err != nil {
				return err
			}
			secret.Zero()

			group, err := common.KeyGroupFromShares(shares, mode(c))
			if err != nil {
				return err
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SaveGroup(group); err != nil {
				return fmt.Errorf("failed to save key group: %w", err)
			}
			if err := db.SaveShares(group.KeyID, common.KindShamir, shares); err != nil {
				return fmt.Errorf("failed to save shares: %w", err)
			}
			if err := db.SaveParams(group.KeyID, params); err != nil {
				return fmt.Errorf("failed to save public parameters: %w", err)
			}

			log.Info().
				Str("key", group.KeyID).
				Str("pubkey", group.SharedPublicKey).
				Uint16("threshold", threshold).
				Uint16("parties", parties).
				Msg("dealt new key")

			return writeOutput(c.String("out"), sharing.PortableKeyShares(shares))
		},
	}
}
