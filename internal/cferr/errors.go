// Package cferr collects the sentinel errors shared by the ring buffer and
// frame packages. The reference implementation returns a flat error-code
// enumeration by value; Go's idiom for that is a fixed set of sentinel
// errors compared with errors.Is, which is what every package in this
// module does instead of inventing an error-code type.
package cferr

import "errors"

var (
	// ErrNilBuffer means a required buffer argument was nil.
	ErrNilBuffer = errors.New("cff: nil buffer")
	// ErrBufferTooSmall means a caller-provided buffer cannot hold the result.
	ErrBufferTooSmall = errors.New("cff: buffer too small")
	// ErrInsufficientSpace means a ring append exceeds free space, or a
	// consume exceeds the bytes available.
	ErrInsufficientSpace = errors.New("cff: insufficient space")
	// ErrPayloadTooLarge means a payload exceeds the maximum payload size.
	ErrPayloadTooLarge = errors.New("cff: payload too large")
	// ErrIncompleteFrame means more bytes are needed before a frame can be
	// validated; the caller should supply more data and retry.
	ErrIncompleteFrame = errors.New("cff: incomplete frame")
	// ErrInvalidPreamble means the bytes at the inspected origin do not
	// match the frame preamble.
	ErrInvalidPreamble = errors.New("cff: invalid preamble")
	// ErrInvalidHeaderCRC means the header CRC did not match.
	ErrInvalidHeaderCRC = errors.New("cff: invalid header crc")
	// ErrInvalidPayloadCRC means the payload CRC did not match.
	ErrInvalidPayloadCRC = errors.New("cff: invalid payload crc")
	// ErrOutOfRange means a peek or CRC range fell outside the bytes
	// currently held by the ring buffer.
	ErrOutOfRange = errors.New("cff: offset out of range")
)
