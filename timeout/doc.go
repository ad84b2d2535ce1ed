// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout supplies the deadline a transaction arms each time
// it issues a transport operation that may finish asynchronously.
//
// The deadline covers one pending operation, not the whole
// transaction: it is rearmed for every chunk sent or received. Use
// Fixed for a single value, PerOp to vary it by transport.Op, and
// Adaptive to lengthen it for retries that follow a timed-out attempt.
package timeout
