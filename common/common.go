package common

import (
	"encoding/hex"

	"fiatjaf.com/sharebridge/sharing"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// share kinds kept for each key
const (
	KindShamir   = "shamir"
	KindAdditive = "additive"
)

var Kinds = []string{KindShamir, KindAdditive}

var keyIDTag = []byte("sharebridge/key-id")

// KeyID is a short stable name for a shared key, derived from its compressed encoding.
// Any accepted encoding of the same point gives the same id.
func KeyID(y string) (string, error) {
	pt, err := sharing.DecodePoint(y)
	if err != nil {
		return "", err
	}
	compressed, _ := hex.DecodeString(sharing.EncodePoint(pt))
	h := chainhash.TaggedHash(keyIDTag, compressed)
	return hex.EncodeToString(h[:8]), nil
}
