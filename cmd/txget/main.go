// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command txget fetches a URL with a single txhttp transaction and
// streams the response body to standard output.
//
// Usage:
//
//	txget [flags] <url>
//
// Progress, redirects, and (with -v) transaction logs go to standard
// error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "txget:", err)
		stop()
		os.Exit(1)
	}
}
