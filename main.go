package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fiatjaf.com/sharebridge/sharing"
	"fiatjaf.com/sharebridge/store"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

type Settings struct {
	DB       string `envconfig:"DB" default:"./db"`
	Port     string `envconfig:"PORT" default:"6464"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// allows one process to hold the private shares of several parties
	TrustedDealer bool `envconfig:"TRUSTED_DEALER" default:"false"`

	ResharingTimeout time.Duration `envconfig:"RESHARING_TIMEOUT" default:"30s"`

	// largest sharing the public reconstruction endpoint will interpolate
	MaxParties uint16 `envconfig:"MAX_PARTIES" default:"256"`
}

const (
	defaultResharingTimeout = 30 * time.Second
	defaultMaxParties       = 256
)

var (
	s   Settings
	log = zerolog.New(os.Stderr).Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

func main() {
	err := envconfig.Process("sharebridge", &s)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't process envconfig")
		return
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:        "sharebridge",
		Usage:       "moves threshold ECDSA key shares between Shamir and additive sharing",
		Description: "all hex scalars are 32 bytes big-endian, all points are compressed SEC1",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "path to the badger directory where keys are kept",
				Value: s.DB,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error",
				Value: s.LogLevel,
			},
			&cli.BoolFlag{
				Name:  "trusted-dealer",
				Usage: "let this process act for every party at once; never use this with real keys",
				Value: s.TrustedDealer,
			},
		},
		Commands: []*cli.Command{
			dealCommand(),
			importCommand(),
			exportCommand(),
			toAdditiveCommand(),
			reshareCommand(),
			refreshCommand(),
			reconstructCommand(),
			embedCommand(),
			listCommand(),
			deleteCommand(),
			simulateCommand(),
			serveCommand(),
		},
	}
}

func setupLogging(c *cli.Command) error {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.String("log-level"), err)
	}
	log = log.Level(level)
	return nil
}

func setup(c *cli.Command) (*store.Store, error) {
	if err := setupLogging(c); err != nil {
		return nil, err
	}

	db, err := store.Open(c.String("db"))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func mode(c *cli.Command) sharing.Mode {
	if c.Bool("trusted-dealer") {
		return sharing.TrustedDealer
	}
	return sharing.Distributed
}

func requireTrustedDealer(c *cli.Command) error {
	if mode(c) != sharing.TrustedDealer {
		return fmt.Errorf("'%s' handles the private shares of several parties: %w (use --trusted-dealer)",
			c.Name, sharing.ErrTrustedDealerRequired)
	}
	log.Warn().Str("command", c.Name).Msg("running as trusted dealer, this process sees every private share")
	return nil
}
