package sharing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	ScalarSize = 32
	PointSize  = 33
)

// Strip0x removes an optional 0x prefix.
func Strip0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// Ensure0x adds the 0x prefix some external libraries expect on their hex fields.
// Nothing in this package ever emits it on its own.
func Ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

// PadHex left-pads odd-length hex with a zero nibble.
func PadHex(s string) string {
	if len(s)%2 == 1 {
		return "0" + s
	}
	return s
}

func decodeHex(s string) ([]byte, error) {
	s = PadHex(Strip0x(s))
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrMalformedHex)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHex, err)
	}
	return b, nil
}

// DecodeScalar parses a big-endian hex scalar. Inputs shorter than 32 bytes are left-padded.
func DecodeScalar(s string) (*btcec.ModNScalar, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) > ScalarSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrScalarTooLong, len(b), ScalarSize)
	}

	var buf [ScalarSize]byte
	copy(buf[ScalarSize-len(b):], b)

	scalar := new(btcec.ModNScalar)
	if overflow := scalar.SetBytes(&buf); overflow != 0 {
		return nil, fmt.Errorf("%w: %x is not below the group order", ErrNonCanonicalScalar, buf)
	}
	return scalar, nil
}

// EncodeScalar returns 64 lowercase hex characters, no prefix.
func EncodeScalar(s *btcec.ModNScalar) string {
	b := s.Bytes()
	return hex.EncodeToString(b[:])
}

// DecodePoint parses a SEC1 encoded point (compressed or not).
func DecodePoint(s string) (*btcec.JacobianPoint, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}

	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPoint, err)
	}

	pt := new(btcec.JacobianPoint)
	pk.AsJacobian(pt)
	return pt, nil
}

// DecodeCompressedPoint is DecodePoint restricted to the 33-byte compressed form that
// interchange records carry.
func DecodeCompressedPoint(s string) (*btcec.JacobianPoint, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) != PointSize ||
		(b[0] != secp256k1.PubKeyFormatCompressedEven && b[0] != secp256k1.PubKeyFormatCompressedOdd) {
		return nil, fmt.Errorf("%w: %d bytes with prefix %02x, expected a compressed point", ErrInvalidPoint, len(b), b[0])
	}
	return DecodePoint(s)
}

// EncodePoint returns the 33-byte compressed form as hex.
// The identity has no such form and comes out with an all-zero x, which DecodePoint rejects.
func EncodePoint(pt *btcec.JacobianPoint) string {
	var out [PointSize]byte
	writePointTo(out[:], pt)
	return hex.EncodeToString(out[:])
}

func writePointTo(out []byte, pt *btcec.JacobianPoint) {
	affine := new(btcec.JacobianPoint)
	affine.Set(pt)
	affine.ToAffine()

	if affine.Y.IsOdd() {
		out[0] = secp256k1.PubKeyFormatCompressedOdd
	} else {
		out[0] = secp256k1.PubKeyFormatCompressedEven
	}
	affine.X.PutBytesUnchecked(out[1:])
}

func scalarFromUint64(v uint64) *btcec.ModNScalar {
	var buf [ScalarSize]byte
	binary.BigEndian.PutUint64(buf[ScalarSize-8:], v)
	s := new(btcec.ModNScalar)
	s.SetBytes(&buf)
	return s
}

func basePoint(s *btcec.ModNScalar) *btcec.JacobianPoint {
	pt := new(btcec.JacobianPoint)
	btcec.ScalarBaseMultNonConst(s, pt)
	pt.ToAffine()
	return pt
}

func isIdentity(pt *btcec.JacobianPoint) bool {
	return (pt.X.IsZero() && pt.Y.IsZero()) || pt.Z.IsZero()
}

func pointsEqual(a, b *btcec.JacobianPoint) bool {
	if isIdentity(a) || isIdentity(b) {
		return isIdentity(a) && isIdentity(b)
	}

	aa, bb := new(btcec.JacobianPoint), new(btcec.JacobianPoint)
	aa.Set(a)
	bb.Set(b)
	aa.ToAffine()
	bb.ToAffine()
	return aa.X.Equals(&bb.X) && aa.Y.Equals(&bb.Y)
}
