package sharing

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedHex          = errors.New("malformed hex")
	ErrScalarTooLong         = errors.New("scalar too long")
	ErrNonCanonicalScalar    = errors.New("scalar is not a canonical field element")
	ErrInvalidPoint          = errors.New("invalid curve point")
	ErrDuplicatePoint        = errors.New("duplicate evaluation point")
	ErrSingularDenominator   = errors.New("lagrange denominator is zero")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrEmptyInput            = errors.New("empty input")
	ErrFieldInversionFailure = errors.New("field inversion failure")
	ErrMismatchedParticipant = errors.New("mismatched participant set")

	// these are not produced by the interpolation itself, but by the checks around it
	ErrTrustedDealerRequired = errors.New("operation holds every private share and requires trusted-dealer mode")
	ErrInconsistentShares    = errors.New("shares do not lie on a polynomial of the declared degree")
	ErrSharedKeyMismatch     = errors.New("reconstructed shared public key does not match")
)

// ParticipantError attaches the storage index of the party that caused a failure.
type ParticipantError struct {
	Index uint16
	Err   error
}

func (pe ParticipantError) Error() string {
	return fmt.Sprintf("participant %d: %s", pe.Index, pe.Err)
}

func (pe ParticipantError) Unwrap() error { return pe.Err }

func insufficient(got, want int) error {
	return fmt.Errorf("%w: need at least %d, got %d", ErrInsufficientShares, want, got)
}
