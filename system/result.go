// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import (
	"errors"
	"fmt"
)

// Status is the raw numeric code returned by every kernel call.
type Status uint32

// Result is the closed set of outcomes a kernel call can report.
type Result uint32

const (
	ResultOK Result = iota
	ResultCancelled
	ResultUnknown
	ResultInvalidArgument
	ResultDeadlineExceeded
	ResultNotFound
	ResultAlreadyExists
	ResultPermissionDenied
	ResultResourceExhausted
	ResultFailedPrecondition
	ResultAborted
	ResultOutOfRange
	ResultUnimplemented
	ResultInternal
	ResultUnavailable
	ResultDataLoss
	ResultBusy
	ResultShouldWait

	resultCount
)

var resultNames = [...]string{
	ResultOK:                 "OK",
	ResultCancelled:          "CANCELLED",
	ResultUnknown:            "UNKNOWN",
	ResultInvalidArgument:    "INVALID_ARGUMENT",
	ResultDeadlineExceeded:   "DEADLINE_EXCEEDED",
	ResultNotFound:           "NOT_FOUND",
	ResultAlreadyExists:      "ALREADY_EXISTS",
	ResultPermissionDenied:   "PERMISSION_DENIED",
	ResultResourceExhausted:  "RESOURCE_EXHAUSTED",
	ResultFailedPrecondition: "FAILED_PRECONDITION",
	ResultAborted:            "ABORTED",
	ResultOutOfRange:         "OUT_OF_RANGE",
	ResultUnimplemented:      "UNIMPLEMENTED",
	ResultInternal:           "INTERNAL",
	ResultUnavailable:        "UNAVAILABLE",
	ResultDataLoss:           "DATA_LOSS",
	ResultBusy:               "BUSY",
	ResultShouldWait:         "SHOULD_WAIT",
}

func (r Result) String() string {
	if r < resultCount {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", uint32(r))
}

// Status returns the kernel encoding of r.
func (r Result) Status() Status {
	return Status(r)
}

// Err returns nil for ResultOK and an *Error naming op otherwise.
func (r Result) Err(op string) error {
	if r == ResultOK {
		return nil
	}
	return &Error{Result: r, Op: op}
}

// Result maps a raw kernel code onto the closed Result enumeration. Codes
// the bindings do not know about become ResultUnknown.
func (s Status) Result() Result {
	if r := Result(s); r < resultCount {
		return r
	}
	return ResultUnknown
}

func (s Status) String() string {
	return s.Result().String()
}

// Error is the error type returned by all operations in this package and its
// subpackages.
type Error struct {
	Result Result
	Op     string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return "mojo: " + e.Result.String()
	}
	return "mojo: " + e.Op + ": " + e.Result.String()
}

// Is reports whether target is an *Error carrying the same Result, so that
// errors.Is(err, &Error{Result: ResultShouldWait}) matches regardless of Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Result == e.Result
}

// ResultOf extracts the Result carried by err. A nil error is ResultOK and an
// error that did not originate from this package is ResultUnknown.
func ResultOf(err error) Result {
	if err == nil {
		return ResultOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Result
	}
	return ResultUnknown
}
