package sharing

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// Mode tells whether a single process is allowed to hold the private shares of several parties.
type Mode int

const (
	// Distributed is the default: every party holds only its own share.
	Distributed Mode = iota

	// TrustedDealer lets one process play every party. Simulations and tests only.
	TrustedDealer
)

func (m Mode) String() string {
	switch m {
	case Distributed:
		return "distributed"
	case TrustedDealer:
		return "trusted-dealer"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Resharing turns additive shares into Shamir shares of the same secret with the given threshold.
//
// Each party shares its additive value with a fresh polynomial and delivers sub-share j to party j.
// Every party then waits for one sub-share from each participant, its own included, and sums them.
// The parties run as separate goroutines talking over channels, but they all live in this process,
// which is why Run refuses to work outside of TrustedDealer mode.
type Resharing struct {
	Threshold uint16
	Mode      Mode
}

type subShare struct {
	from  uint16
	to    uint16
	value *btcec.ModNScalar
}

// network delivers sub-shares to per-party inboxes.
type network struct {
	inboxes *xsync.MapOf[uint16, chan subShare]
}

func newNetwork(parties []uint16) *network {
	n := &network{inboxes: xsync.NewMapOf[uint16, chan subShare]()}
	for _, party := range parties {
		// big enough that no sender ever blocks
		n.inboxes.Store(party, make(chan subShare, len(parties)))
	}
	return n
}

func (n *network) send(ctx context.Context, msg subShare) error {
	inbox, ok := n.inboxes.Load(msg.to)
	if !ok {
		return fmt.Errorf("%w: no party %d to deliver to", ErrMismatchedParticipant, msg.to)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout sending sub-share to %d: %w", msg.to, ctx.Err())
	case inbox <- msg:
		return nil
	}
}

// receive blocks until one sub-share from each of senders has arrived at self's inbox.
func (n *network) receive(ctx context.Context, self uint16, senders []uint16) ([]subShare, error) {
	inbox, ok := n.inboxes.Load(self)
	if !ok {
		return nil, fmt.Errorf("%w: no inbox for %d", ErrMismatchedParticipant, self)
	}

	pending := make(map[uint16]struct{}, len(senders))
	for _, s := range senders {
		pending[s] = struct{}{}
	}

	received := make([]subShare, 0, len(senders))
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for %d sub-shares: %w", len(pending), ctx.Err())
		case msg := <-inbox:
			if _, ok := pending[msg.from]; !ok {
				return nil, fmt.Errorf("%w: unexpected or repeated sub-share from %d", ErrMismatchedParticipant, msg.from)
			}
			delete(pending, msg.from)
			received = append(received, msg)
		}
	}

	return received, nil
}

type resharingParty struct {
	share     PortableKeyShare
	peers     []uint16
	threshold uint16
}

func (p resharingParty) run(ctx context.Context, net *network) (PortableKeyShare, error) {
	w, err := p.share.Secret()
	if err != nil {
		return PortableKeyShare{}, err
	}

	poly, err := makePolynomial(w, p.threshold)
	if err != nil {
		return PortableKeyShare{}, ParticipantError{p.share.I, err}
	}

	// step-1 (send): one sub-share for each peer, evaluated at that peer's coordinate
	for _, to := range p.peers {
		msg := subShare{from: p.share.I, to: to, value: poly.Evaluate(EvaluationScalar(to))}
		if err := net.send(ctx, msg); err != nil {
			return PortableKeyShare{}, ParticipantError{p.share.I, err}
		}
	}

	// step-2 (receive): wait for everybody before summing, partial sums are meaningless
	received, err := net.receive(ctx, p.share.I, p.peers)
	if err != nil {
		return PortableKeyShare{}, ParticipantError{p.share.I, err}
	}

	x := new(btcec.ModNScalar)
	for _, msg := range received {
		x.Add(msg.value)
	}

	out := p.share
	out.X = EncodeScalar(x)
	out.T = p.threshold
	return out, nil
}

// Run executes the resharing. Sub-shares are paired by each record's own index, so the input doesn't
// need to cover 0..n-1, but indices must be unique and all records must describe the same key.
// The output is ordered by index.
func (r Resharing) Run(ctx context.Context, additive []PortableKeyShare) ([]PortableKeyShare, error) {
	if r.Mode != TrustedDealer {
		return nil, fmt.Errorf("resharing in %s mode: %w", r.Mode, ErrTrustedDealerRequired)
	}
	if err := checkAgreement(additive); err != nil {
		return nil, err
	}

	sorted := PortableKeyShares(additive).Sorted()
	indices := sorted.Indices()
	if err := checkPoints(EvaluationPoints(indices)); err != nil {
		return nil, err
	}
	if r.Threshold == 0 {
		return nil, fmt.Errorf("resharing threshold must be at least 1")
	}
	if int(r.Threshold) > len(sorted) {
		return nil, fmt.Errorf("threshold %d for %d parties: %w", r.Threshold, len(sorted), insufficient(len(sorted), int(r.Threshold)))
	}

	net := newNetwork(indices)
	results := make([]PortableKeyShare, len(sorted))

	g, ctx := errgroup.WithContext(ctx)
	for k, share := range sorted {
		party := resharingParty{share: share, peers: indices, threshold: r.Threshold}
		g.Go(func() error {
			res, err := party.run(ctx, net)
			if err != nil {
				return err
			}
			results[k] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
