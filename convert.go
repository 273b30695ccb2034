package main

import (
	"context"
	"fmt"
	"slices"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/keyshare"
	"fiatjaf.com/sharebridge/sharing"
	"github.com/urfave/cli/v3"
)

func keyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "key",
		Usage:    "key id as shown by 'list'",
		Required: true,
	}
}

func toAdditiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "to-additive",
		Usage: "turns the stored Shamir records of a signing quorum into additive shares of the same key",
		Description: "only the records of quorum members held locally are converted, so this works the same " +
			"for a party holding its own record and for a dealer holding all of them",
		Flags: []cli.Flag{
			keyFlag(),
			&cli.StringFlag{
				Name:     "quorum",
				Usage:    "comma-separated indices of the parties that will sign, like 0,2,4",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			quorum, err := parseQuorum(c.String("quorum"))
			if err != nil {
				return err
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			group, err := db.Group(id)
			if err != nil {
				return err
			}
			if len(quorum) < int(group.Threshold) {
				return fmt.Errorf("quorum for a %d-of-%d key: %w",
					group.Threshold, group.Parties, sharing.ErrInsufficientShares)
			}
			if last := quorum[len(quorum)-1]; last >= group.Parties {
				return fmt.Errorf("%w: party %d in quorum, key has %d parties", sharing.ErrMismatchedParticipant, last, group.Parties)
			}

			shares, err := db.Shares(id, common.KindShamir)
			if err != nil {
				return err
			}

			points := sharing.EvaluationPoints(quorum)
			lambdas := sharing.NewLambdaRegistry()
			additive := make([]sharing.PortableKeyShare, 0, len(quorum))
			for _, share := range shares {
				if !slices.Contains(quorum, share.I) {
					continue
				}
				converted, err := lambdas.ShamirToAdditive(share, points)
				if err != nil {
					return err
				}
				additive = append(additive, converted)
			}
			if len(additive) == 0 {
				return fmt.Errorf("none of the quorum's records are stored here: %w", sharing.ErrEmptyInput)
			}

			if err := db.SaveShares(id, common.KindAdditive, additive); err != nil {
				return fmt.Errorf("failed to save additive shares: %w", err)
			}

			log.Info().
				Str("key", id).
				Uints16("quorum", quorum).
				Int("converted", len(additive)).
				Int("lambdas", lambdas.Len()).
				Msg("converted to additive")
			return nil
		},
	}
}

func reshareCommand() *cli.Command {
	return &cli.Command{
		Name:  "reshare",
		Usage: "runs the resharing protocol over the stored additive shares, producing fresh Shamir records",
		Flags: []cli.Flag{
			keyFlag(),
			&cli.UintFlag{
				Name:     "threshold",
				Usage:    "threshold of the new Shamir sharing",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "how long to wait for every party to deliver its sub-shares (default: $SHAREBRIDGE_RESHARING_TIMEOUT)",
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

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			group, err := db.Group(id)
			if err != nil {
				return err
			}
			additive, err := db.Shares(id, common.KindAdditive)
			if err != nil {
				return fmt.Errorf("run 'to-additive' first: %w", err)
			}
			if err := checkFullSet(additive, group.Parties); err != nil {
				return err
			}

			timeout := s.ResharingTimeout
			if c.IsSet("timeout") {
				timeout = c.Duration("timeout")
			}
			if timeout <= 0 {
				timeout = defaultResharingTimeout
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			shares, err := sharing.Resharing{Threshold: threshold, Mode: mode(c)}.Run(ctx, additive)
			if err != nil {
				return err
			}

			params, err := sharing.ReconstructGlobalParams(shares)
			if err != nil {
				return fmt.Errorf("failed to reconstruct parameters of the new sharing: %w", err)
			}
			if err := params.VerifySharedPublicKey(group.SharedPublicKey); err != nil {
				return err
			}

			group.Threshold = threshold
			group.Parties = shares[0].N
			group.Mode = mode(c).String()
			if err := db.SaveGroup(group); err != nil {
				return err
			}
			if err := db.SaveShares(id, common.KindShamir, shares); err != nil {
				return err
			}
			if err := db.SaveParams(id, params); err != nil {
				return err
			}
			// consumed
			if err := db.SaveShares(id, common.KindAdditive, nil); err != nil {
				return err
			}

			log.Info().
				Str("key", id).
				Uint16("threshold", group.Threshold).
				Uint16("parties", group.Parties).
				Uints16("indices", sharing.PortableKeyShares(shares).Indices()).
				Msg("reshared")
			return nil
		},
	}
}

func reconstructCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconstruct",
		Usage: "recomputes the commitments and public shares of a key from its stored Shamir records",
		Flags: []cli.Flag{
			keyFlag(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "where to write the parameters, '-' for stdout",
				Value: "-",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			group, err := db.Group(id)
			if err != nil {
				return err
			}
			shares, err := db.Shares(id, common.KindShamir)
			if err != nil {
				return err
			}

			params, err := sharing.ReconstructGlobalParams(shares)
			if err != nil {
				return err
			}
			if err := params.VerifySharedPublicKey(group.SharedPublicKey); err != nil {
				return err
			}
			if err := db.SaveParams(id, params); err != nil {
				return err
			}

			return writeOutput(c.String("out"), paramsJSON(params))
		},
	}
}

func embedCommand() *cli.Command {
	return &cli.Command{
		Name:      "embed",
		Usage:     "writes the stored Shamir records of a key back into native threshold shares",
		ArgsUsage: "<template>...",
		Flags: []cli.Flag{
			keyFlag(),
			&cli.StringFlag{
				Name:  "out",
				Usage: "where to write the updated shares, '-' for stdout",
				Value: "-",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("give at least one template file")
			}

			templates := make([]*keyshare.ThresholdShare, 0, c.Args().Len())
			for _, path := range c.Args().Slice() {
				b, err := readInput(path)
				if err != nil {
					return err
				}
				natives, err := decodeList[keyshare.ThresholdShare](b)
				if err != nil {
					return fmt.Errorf("invalid threshold share in %s: %w", path, err)
				}
				for k := range natives {
					templates = append(templates, &natives[k])
				}
			}

			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			shares, err := db.Shares(c.String("key"), common.KindShamir)
			if err != nil {
				return err
			}

			if err := keyshare.UpdateThresholdShares(templates, shares); err != nil {
				return err
			}

			return writeOutput(c.String("out"), templates)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "shows the stored keys",
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			groups, err := db.Groups()
			if err != nil {
				return err
			}
			return writeOutput("-", groups)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "removes a key with all its records and parameters",
		Flags: []cli.Flag{
			keyFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			id := c.String("key")
			if _, err := db.Group(id); err != nil {
				return err
			}
			if err := db.DeleteKey(id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}

			log.Info().Str("key", id).Msg("deleted")
			return nil
		},
	}
}

// checkFullSet makes sure every one of the n parties holds an additive record and nobody else does.
// Resharing only hands new shares to the parties it starts from.
func checkFullSet(additive []sharing.PortableKeyShare, n uint16) error {
	indices := sharing.PortableKeyShares(additive).Indices()
	missing := make([]uint16, 0, n)
	for i := range n {
		if !slices.Contains(indices, i) {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: parties %v have no additive share, convert the full set with 'to-additive'",
			sharing.ErrMismatchedParticipant, missing)
	}
	for _, share := range additive {
		if share.I >= n {
			return sharing.ParticipantError{
				Index: share.I,
				Err:   fmt.Errorf("%w: key has %d parties", sharing.ErrMismatchedParticipant, n),
			}
		}
	}
	return nil
}

type paramsView struct {
	SharedPublicKey string   `json:"shared_public_key"`
	Commitments     []string `json:"commitments"`
	PublicShares    []string `json:"public_shares"`
}

func paramsJSON(params *sharing.GlobalParams) paramsView {
	return paramsView{
		SharedPublicKey: params.SharedPublicKeyHex(),
		Commitments:     params.CommitmentsHex(),
		PublicShares:    params.PublicSharesHex(),
	}
}
