// Package app contains the bridge's application core: the entity filter,
// the event publisher that builds envelopes and update calls, the
// reconnecting client that owns the tickerplant connection, and the
// lifecycle state machine that supervises the workers.
package app
