package didcomm

import "errors"

// Error taxonomy for the transport runtime. The sentinels are wrapped with
// fmt.Errorf("..: %w", ..) at raise sites and matched with errors.Is.
var (
	// ErrParse marks malformed wire bytes. Recoverable per message: the
	// dispatcher turns it into a problem report instead of crashing.
	ErrParse = errors.New("parse error")

	// ErrRegistration marks an unknown transport scheme or a duplicate
	// driver registration. Fatal at startup, non-retryable at send time.
	ErrRegistration = errors.New("registration error")

	// ErrDelivery marks a transport I/O failure. Retryable up to the
	// configured retry bound.
	ErrDelivery = errors.New("delivery error")

	// ErrEncoding marks missing keys or a crypto failure while packing.
	// Non-retryable, the queued message fails immediately.
	ErrEncoding = errors.New("encoding error")
)
