package ips

import "errors"

var (
	// ErrSignatureMismatch indicates the patch did not start with "PATCH".
	ErrSignatureMismatch = errors.New("ips: signature mismatch")
	// ErrTruncated indicates the patch ended inside a record.
	ErrTruncated = errors.New("ips: truncated patch")
	// ErrOffset indicates a record offset that cannot be expressed in 24 bits.
	ErrOffset = errors.New("ips: offset out of range")
)
