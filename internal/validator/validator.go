// Package validator tracks which onion is in flight and how many hops of it have
// completed. It is the single source of truth for onion identity during a run.
package validator

import "log/slog"

// OnionValidator is the view nodes and watchdogs have of the validator.
type OnionValidator interface {
	ExpectedOnionID() uint32
	ExpectedHopCountForNewSend() int
	HasReceivedAtLeast(count int) bool
	NotifyFullyReceived()
}

// Validator counts hop sends and hop receipts of the onion in flight. Only one onion
// travels at a time, so the n-th receipt answers the n-th send. Both counters only
// grow, so a check made for an earlier send never fails once that hop was received
// or its onion abandoned.
type Validator struct {
	onionID  uint32
	sent     int
	received int
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) ExpectedOnionID() uint32 {
	return v.onionID
}

// ExpectedHopCountForNewSend registers one more hop send and returns the count a
// watchdog must see received for that send to be considered complete.
func (v *Validator) ExpectedHopCountForNewSend() int {
	v.sent++
	return v.sent
}

func (v *Validator) HasReceivedAtLeast(count int) bool {
	return v.received >= count
}

// NotifyFullyReceived records that a node has received the whole onion sent on the
// latest hop.
func (v *Validator) NotifyFullyReceived() {
	v.received++
}

// StartOnion moves on to a new onion and returns its id. Hops still pending for the
// previous onion are written off.
func (v *Validator) StartOnion() uint32 {
	v.onionID++
	if v.received < v.sent {
		slog.Debug("abandoning onion", "onion_id", v.onionID-1, "pending_hops", v.sent-v.received)
	}
	v.received = v.sent
	return v.onionID
}

// Counters returns the number of hop sends registered and acknowledged so far.
func (v *Validator) Counters() (sent, received int) {
	return v.sent, v.received
}
