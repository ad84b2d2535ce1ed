// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient sorts transaction failures into those worth
// retrying and those that are not. Retry deciders use it, and its
// Category names make convenient labels when counting failures.
//
// Categorize understands the standard library's timeout convention and
// socket errno values, and the transport package's Errno codes.
package transient
