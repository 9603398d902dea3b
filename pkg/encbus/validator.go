// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package encbus

import (
	"errors"
	"fmt"
)

// Validation sentinels, matched with errors.Is
var (
	ErrShortFrame       = errors.New("short frame")
	ErrAddressMismatch  = errors.New("address mismatch")
	ErrFunctionMismatch = errors.New("function mismatch")
	ErrException        = errors.New("device exception")
	ErrByteCount        = errors.New("byte count mismatch")
	ErrChecksum         = errors.New("checksum mismatch")
)

// AnomalyType represents different kinds of malformed replies
type AnomalyType int

const (
	AnomalyShortFrame AnomalyType = iota
	AnomalyAddressMismatch
	AnomalyFunctionMismatch
	AnomalyException
	AnomalyByteCount
	AnomalyChecksum
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyShortFrame:
		return "SHORT_FRAME"
	case AnomalyAddressMismatch:
		return "ADDRESS_MISMATCH"
	case AnomalyFunctionMismatch:
		return "FUNCTION_MISMATCH"
	case AnomalyException:
		return "EXCEPTION"
	case AnomalyByteCount:
		return "BYTE_COUNT"
	case AnomalyChecksum:
		return "CHECKSUM"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a reply validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Unwrap maps the anomaly to its sentinel error
func (v *ValidationError) Unwrap() error {
	switch v.Type {
	case AnomalyShortFrame:
		return ErrShortFrame
	case AnomalyAddressMismatch:
		return ErrAddressMismatch
	case AnomalyFunctionMismatch:
		return ErrFunctionMismatch
	case AnomalyException:
		return ErrException
	case AnomalyByteCount:
		return ErrByteCount
	case AnomalyChecksum:
		return ErrChecksum
	}
	return nil
}

// Validate checks the reply against the request that produced it and
// returns the first problem found, or nil for a well-formed reply.
// An empty (silent) response is not validated.
func (r *Response) Validate(req Request) error {
	errs := ValidateResponse(req, r)
	if len(errs) == 0 {
		return nil
	}
	return &errs[0]
}

// ValidateResponse checks echoed address, function code, byte count and
// checksum. Returns a slice of validation errors (empty if the reply is valid).
func ValidateResponse(req Request, r *Response) []ValidationError {
	issues := []ValidationError{}
	if r.Empty() {
		return issues
	}

	if r.Len() < minResponseSize {
		return []ValidationError{{
			Type:    AnomalyShortFrame,
			Message: fmt.Sprintf("reply from address %d too short (%d bytes, min %d)", req.Address(), r.Len(), minResponseSize),
			Details: map[string]interface{}{"length": r.Len(), "expected": req.ExpectedResponseSize()},
		}}
	}

	if r.Address() != req.Address() {
		issues = append(issues, ValidationError{
			Type:    AnomalyAddressMismatch,
			Message: fmt.Sprintf("reply address %d does not match request address %d", r.Address(), req.Address()),
			Details: map[string]interface{}{"received": r.Address(), "expected": req.Address()},
		})
	}

	if r.Function() == req.Function()|exceptionFlag {
		issues = append(issues, ValidationError{
			Type:    AnomalyException,
			Message: fmt.Sprintf("address %d raised exception 0x%02X", req.Address(), r.raw[2]),
			Details: map[string]interface{}{"code": r.raw[2]},
		})
		return append(issues, checkCRC(r)...)
	}

	if r.Function() != req.Function() {
		issues = append(issues, ValidationError{
			Type:    AnomalyFunctionMismatch,
			Message: fmt.Sprintf("reply function 0x%02X does not match request function 0x%02X", r.Function(), req.Function()),
			Details: map[string]interface{}{"received": r.Function(), "expected": req.Function()},
		})
		return issues
	}

	expected := 2 * int(req.Count())
	if r.ByteCount() != expected {
		issues = append(issues, ValidationError{
			Type:    AnomalyByteCount,
			Message: fmt.Sprintf("reply byte count %d, expected %d", r.ByteCount(), expected),
			Details: map[string]interface{}{"received": r.ByteCount(), "expected": expected},
		})
	}

	if r.Len() < headerSize+r.ByteCount()+checksumSize {
		return append(issues, ValidationError{
			Type:    AnomalyShortFrame,
			Message: fmt.Sprintf("reply truncated (%d bytes, declared %d)", r.Len(), headerSize+r.ByteCount()+checksumSize),
			Details: map[string]interface{}{"length": r.Len(), "expected": headerSize + r.ByteCount() + checksumSize},
		})
	}

	return append(issues, checkCRC(r)...)
}

func checkCRC(r *Response) []ValidationError {
	received, ok := r.CRC()
	if !ok {
		return []ValidationError{{
			Type:    AnomalyShortFrame,
			Message: "reply has no checksum",
			Details: map[string]interface{}{"length": r.Len()},
		}}
	}
	calculated := r.ComputedCRC()
	if received != calculated {
		return []ValidationError{{
			Type:    AnomalyChecksum,
			Message: fmt.Sprintf("checksum mismatch: expected 0x%04X, got 0x%04X", calculated, received),
			Details: map[string]interface{}{"received": received, "calculated": calculated},
		}}
	}
	return nil
}
