package rom

import "errors"

var (
	// ErrUnknownSegment indicates a layout lookup by segment name failed.
	ErrUnknownSegment = errors.New("rom: unknown segment")

	// ErrAddressBound indicates an access falls outside its segment or crosses a bank boundary.
	ErrAddressBound = errors.New("rom: address bound error")

	// ErrAddressType indicates an address variant used where it is not supported.
	ErrAddressType = errors.New("rom: address type error")

	// ErrLayout indicates a structurally invalid layout, or one inconsistent with the buffer length.
	ErrLayout = errors.New("rom: layout error")

	// ErrLength indicates payload-produced bytes exceed their allotted region.
	ErrLength = errors.New("rom: length error")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("rom: config error")
)
