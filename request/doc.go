// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the value types a transaction works with:
Request (what to send), Response and Headers (what came back), and
Execution (the record of a synchronous execution by a client).

Create a request:

	r, err := request.New("POST", "https://example.com/upload",
		request.Headers{{Name: "Content-Type", Value: "text/plain"}},
		request.File("/tmp/upload.txt"))
	...

A Request is immutable after construction. Its body is read through a
BodySource, which yields the body in bounded chunks whether the body is
held in memory or streamed from a file.

Response headers keep their original order and spelling, while lookups
through Headers.Get and Headers.Values are case-insensitive.
*/
package request
