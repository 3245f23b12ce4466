/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recurrence

import "time"

// Calculator produces ordered future posting slots from a policy. It is
// stateless and safe for concurrent use; the only reliance on the current
// time is clamping a stale starting point forward, so identical inputs with
// a future start always yield identical output.
type Calculator struct {
	defaults Defaults
	loc      *time.Location
	now      func() time.Time
}

// NewCalculator builds a calculator that performs all calendar arithmetic in
// loc. A nil location falls back to UTC.
func NewCalculator(defaults Defaults, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{
		defaults: defaults,
		loc:      loc,
		now:      time.Now,
	}
}

// Defaults returns the fallback configuration the calculator was built with.
func (c *Calculator) Defaults() Defaults { return c.defaults }

// Location returns the calendar location used for slot arithmetic.
func (c *Calculator) Location() *time.Location { return c.loc }

// CalculateSlots returns exactly count future instants satisfying the policy,
// in strictly increasing order. Each slot is computed relative to the
// previous one, never to the original start, so repeated calls chained on the
// last returned slot extend the sequence without gaps or duplicates.
// A startAfter in the past is clamped to now: the generator never backfills.
func (c *Calculator) CalculateSlots(policy Policy, count int, startAfter time.Time) []time.Time {
	if count < 0 {
		count = 0
	}
	slots := make([]time.Time, 0, count)
	if policy == nil || count == 0 {
		return slots
	}

	reference := startAfter.In(c.loc)
	if now := c.now().In(c.loc); reference.Before(now) {
		reference = now
	}

	for i := 0; i < count; i++ {
		next := policy.nextAfter(reference)
		slots = append(slots, next)
		reference = next
	}
	return slots
}
