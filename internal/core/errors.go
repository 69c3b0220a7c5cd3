// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with %w at the call site and matched with errors.Is.
var (
	// Packet decoding errors
	ErrPacketTooShort = errors.New("mcdetect: packet too short")

	// Channel errors
	ErrChannelOpen       = errors.New("mcdetect: multicast channel open failed")
	ErrInterfaceNotFound = errors.New("mcdetect: local interface not found")

	// Output errors
	ErrUnknownFormat = errors.New("mcdetect: unknown output format")

	// Configuration errors
	ErrConfigInvalid = errors.New("mcdetect: invalid configuration")
)
