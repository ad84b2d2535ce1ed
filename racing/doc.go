// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package racing provides policies for running several transactions for
the same attempt at once, in a "race" to hide a slow server instance.

Racing smooths over pockets of bad response times, but it multiplies
the load an attempt places on the remote service, and a mutating
request may take effect more than once. The default policy used by
txhttp.Client is Disabled, under which every attempt runs exactly one
transaction.

The transactions racing within one attempt are called racers. Every
attempt starts with one racer. After each racer starts, the Policy's
Scheduler is asked how long to wait before adding the next one. When
that time comes, the Policy's Starter decides whether the racer really
starts, since circumstances may have changed in the meantime. A
Starter that declines closes the attempt to new racers.

All racers of an attempt run on the same loop, so their events are
serialized. The first racer to complete wins: its response becomes the
attempt's result and every other racer is cancelled. If no racer
completes, the attempt takes the outcome of the last racer to fail.
*/
package racing
