package payload

import "errors"

var (
	// ErrChecksum indicates an imported image no longer matches its recorded digest.
	ErrChecksum = errors.New("payload: image checksum mismatch")

	// ErrEncoding indicates text that cannot be stored in the ROM's character set.
	ErrEncoding = errors.New("payload: text not representable")

	// ErrPolicy indicates an unknown text allocation policy.
	ErrPolicy = errors.New("payload: unknown allocation policy")
)
