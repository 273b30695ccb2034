package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/sharing"
	"fiatjaf.com/sharebridge/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serves the public side of the stored keys over http",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "port to listen on (default: $SHAREBRIDGE_PORT)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := setup(c)
			if err != nil {
				return err
			}
			defer db.Close()

			port := s.Port
			if c.IsSet("port") {
				port = c.String("port")
			}

			maxParties := s.MaxParties
			if maxParties == 0 {
				maxParties = defaultMaxParties
			}

			log.Print("listening at http://0.0.0.0:" + port)
			server := &http.Server{
				Addr:    "0.0.0.0:" + port,
				Handler: cors.AllowAll().Handler(newRouter(ctx, db, maxParties)),
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("")
				}
			}()

			sc := make(chan os.Signal, 1)
			signal.Notify(sc, os.Interrupt)
			select {
			case <-sc:
			case <-ctx.Done():
			}
			return server.Close()
		},
	}
}

type keyView struct {
	Group      common.KeyGroup `json:"group"`
	Parameters *paramsView     `json:"parameters,omitempty"`
}

type pointShareView struct {
	I     uint16 `json:"i"`
	Point string `json:"point"`
}

type reconstructRequest struct {
	Threshold    uint16           `json:"threshold"`
	Parties      uint16           `json:"parties"`
	PublicShares []pointShareView `json:"public_shares"`
}

const maxRequestBody = 64 << 10

func (req reconstructRequest) check(maxParties uint16) error {
	switch {
	case req.Parties == 0 || req.Threshold == 0:
		return fmt.Errorf("%w: threshold and parties must be set", sharing.ErrEmptyInput)
	case req.Parties > maxParties:
		return fmt.Errorf("%w: %d parties, at most %d are served", sharing.ErrMismatchedParticipant, req.Parties, maxParties)
	case req.Threshold > req.Parties:
		return fmt.Errorf("%w: threshold %d above %d parties", sharing.ErrMismatchedParticipant, req.Threshold, req.Parties)
	case len(req.PublicShares) > int(req.Parties):
		return fmt.Errorf("%w: %d public shares for %d parties",
			sharing.ErrMismatchedParticipant, len(req.PublicShares), req.Parties)
	}
	return nil
}

// newRouter exposes public data only, no endpoint ever returns a private share.
func newRouter(ctx context.Context, db *store.Store, maxParties uint16) http.Handler {
	mux := http.NewServeMux()
	limiter := newIPLimiter(ctx, 10, 3*time.Minute)

	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		groups, err := db.Groups()
		if err != nil {
			httpError(w, err)
			return
		}
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(groups)
	})

	mux.HandleFunc("GET /keys/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		group, err := db.Group(id)
		if err != nil {
			httpError(w, err)
			return
		}

		resp := keyView{Group: group}
		if params, err := db.Params(id); err == nil {
			view := paramsJSON(params)
			resp.Parameters = &view
		} else if !errors.Is(err, store.ErrNotFound) {
			httpError(w, err)
			return
		}

		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("POST /reconstruct", limiter.middleware(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req reconstructRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			observe("reconstruct-public", start, err)
			if tooBig := new(http.MaxBytesError); errors.As(err, &tooBig) {
				http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := req.check(maxParties); err != nil {
			observe("reconstruct-public", start, err)
			httpError(w, err)
			return
		}

		points := make([]sharing.PointShare, len(req.PublicShares))
		for k, ps := range req.PublicShares {
			pt, err := sharing.DecodePoint(ps.Point)
			if err != nil {
				observe("reconstruct-public", start, err)
				httpError(w, sharing.ParticipantError{Index: ps.I, Err: err})
				return
			}
			points[k] = sharing.PointShare{Index: ps.I, Point: pt}
		}

		params, err := sharing.ReconstructFromPublicShares(points, req.Threshold, req.Parties)
		observe("reconstruct-public", start, err)
		if err != nil {
			httpError(w, err)
			return
		}

		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(paramsJSON(params))
	}))

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux
}

func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sharing.ErrMalformedHex),
		errors.Is(err, sharing.ErrInvalidPoint),
		errors.Is(err, sharing.ErrDuplicatePoint),
		errors.Is(err, sharing.ErrInsufficientShares),
		errors.Is(err, sharing.ErrEmptyInput),
		errors.Is(err, sharing.ErrMismatchedParticipant),
		errors.Is(err, sharing.ErrInconsistentShares),
		errors.Is(err, sharing.ErrFieldInversionFailure):
		status = http.StatusBadRequest
	default:
		log.Warn().Err(err).Msg("request failed")
	}
	http.Error(w, err.Error(), status)
}
