// Package store keeps key groups, their share records and public parameters in badger.
package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"fiatjaf.com/sharebridge/common"
	"fiatjaf.com/sharebridge/sharing"
	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *badger.DB
}

// Open opens or creates the database at path. An empty path gives an in-memory store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at '%s': %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func groupKey(id string) []byte  { return []byte("group/" + id) }
func paramsKey(id string) []byte { return []byte("params/" + id) }

func sharePrefix(id, kind string) []byte { return []byte("share/" + id + "/" + kind + "/") }
func shareKey(id, kind string, i uint16) []byte {
	return fmt.Appendf(sharePrefix(id, kind), "%05d", i)
}

type shareRecord struct {
	I uint16 `cbor:"1,keyasint"`
	T uint16 `cbor:"2,keyasint"`
	N uint16 `cbor:"3,keyasint"`
	X []byte `cbor:"4,keyasint"`
	Y []byte `cbor:"5,keyasint"`
}

type paramsRecord struct {
	Commitments  [][]byte `cbor:"1,keyasint"`
	PublicShares [][]byte `cbor:"2,keyasint"`
}

func (s *Store) SaveGroup(g common.KeyGroup) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return s.put(groupKey(g.KeyID), g)
}

func (s *Store) Group(id string) (common.KeyGroup, error) {
	var g common.KeyGroup
	err := s.get(groupKey(id), &g)
	return g, err
}

func (s *Store) Groups() ([]common.KeyGroup, error) {
	groups := make([]common.KeyGroup, 0, 4)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("group/")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var g common.KeyGroup
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &g)
			}); err != nil {
				return fmt.Errorf("corrupted group at %s: %w", it.Item().Key(), err)
			}
			groups = append(groups, g)
		}
		return nil
	})
	return groups, err
}

// SaveShares replaces every record of the given kind for a key.
func (s *Store) SaveShares(id, kind string, shares []sharing.PortableKeyShare) error {
	records := make([]shareRecord, len(shares))
	for k, share := range shares {
		x, err := share.Secret()
		if err != nil {
			return err
		}
		y, err := share.PublicKey()
		if err != nil {
			return err
		}
		xb := x.Bytes()
		yb, _ := hex.DecodeString(sharing.EncodePoint(y))
		records[k] = shareRecord{I: share.I, T: share.T, N: share.N, X: xb[:], Y: yb}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, sharePrefix(id, kind)); err != nil {
			return err
		}
		for _, r := range records {
			val, err := cbor.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(shareKey(id, kind, r.I), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Shares returns the records of a kind ordered by index, or ErrNotFound if there are none.
func (s *Store) Shares(id, kind string) ([]sharing.PortableKeyShare, error) {
	shares := make([]sharing.PortableKeyShare, 0, 8)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := sharePrefix(id, kind)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r shareRecord
			if err := it.Item().Value(func(val []byte) error {
				return cbor.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("corrupted share at %s: %w", it.Item().Key(), err)
			}
			shares = append(shares, sharing.PortableKeyShare{
				I: r.I,
				T: r.T,
				N: r.N,
				X: hex.EncodeToString(r.X),
				Y: hex.EncodeToString(r.Y),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("no %s shares for %s: %w", kind, id, ErrNotFound)
	}

	slices.SortFunc(shares, func(a, b sharing.PortableKeyShare) int { return int(a.I) - int(b.I) })
	return shares, nil
}

func (s *Store) SaveParams(id string, params *sharing.GlobalParams) error {
	r := paramsRecord{
		Commitments:  make([][]byte, len(params.Commitments)),
		PublicShares: make([][]byte, len(params.PublicShares)),
	}
	for k, c := range params.CommitmentsHex() {
		r.Commitments[k], _ = hex.DecodeString(c)
	}
	for k, p := range params.PublicSharesHex() {
		r.PublicShares[k], _ = hex.DecodeString(p)
	}
	return s.put(paramsKey(id), r)
}

func (s *Store) Params(id string) (*sharing.GlobalParams, error) {
	var r paramsRecord
	if err := s.get(paramsKey(id), &r); err != nil {
		return nil, err
	}

	commitments := make([]string, len(r.Commitments))
	for k, c := range r.Commitments {
		commitments[k] = hex.EncodeToString(c)
	}
	publicShares := make([]string, len(r.PublicShares))
	for k, p := range r.PublicShares {
		publicShares[k] = hex.EncodeToString(p)
	}
	return sharing.DecodeGlobalParams(commitments, publicShares)
}

// DeleteKey removes everything stored under a key id.
func (s *Store) DeleteKey(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, kind := range common.Kinds {
			if err := deletePrefix(txn, sharePrefix(id, kind)); err != nil {
				return err
			}
		}
		if err := txn.Delete(paramsKey(id)); err != nil {
			return err
		}
		return txn.Delete(groupKey(id))
	})
}

func (s *Store) put(key []byte, v any) error {
	val, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (s *Store) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, v)
		})
	})
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	keys := make([][]byte, 0, 8)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
