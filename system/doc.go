// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package system is the lowest layer of the Mojo bindings. It defines the
// kernel's value types (handles, signals, deadlines and results), the Kernel
// table of native entry points, and UntypedHandle, the owning wrapper that
// every typed endpoint is built on.
//
// The typed resources live in the subpackages messagepipe, datapipe,
// sharedbuffer and waitset. A Kernel must be installed with SetKernel before
// any of them is used.
//
// Every failing operation returns an *Error; use ResultOf or errors.Is to
// inspect it:
//
//	_, err := consumer.Read(buf, datapipe.ReadNone)
//	switch system.ResultOf(err) {
//	case system.ResultShouldWait:
//		// Nothing buffered yet.
//	case system.ResultFailedPrecondition:
//		// The producer is gone and everything has been read.
//	}
package system
