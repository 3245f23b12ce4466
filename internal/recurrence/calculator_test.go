package recurrence

import (
	"testing"
	"time"
)

// fixedNow is a Thursday. All test starting points are at or after it so the
// staleness clamp stays out of the way unless a test exercises it on purpose.
var fixedNow = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func testCalculator() *Calculator {
	c := NewCalculator(StandardDefaults(), time.UTC)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCalculateSlots_Length(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("week", 1, "monday,thursday", "09:00", c.Defaults())

	for _, count := range []int{0, 1, 5, 30} {
		slots := c.CalculateSlots(policy, count, fixedNow)
		if len(slots) != count {
			t.Errorf("count %d: got %d slots", count, len(slots))
		}
	}

	if got := c.CalculateSlots(policy, -3, fixedNow); len(got) != 0 {
		t.Errorf("negative count: got %d slots, want 0", len(got))
	}
}

func TestCalculateSlots_StrictlyIncreasing(t *testing.T) {
	c := testCalculator()

	policies := map[string]Policy{
		"daily_once":   ParsePolicy("day", 1, "", "08:00", c.Defaults()),
		"daily_thrice": ParsePolicy("day", 3, "", "08:00", c.Defaults()),
		"weekly":       ParsePolicy("week", 1, "tuesday,saturday", "18:30", c.Defaults()),
		"monthly":      ParsePolicy("month", 1, "15", "12:00", c.Defaults()),
		"unknown":      ParsePolicy("fortnight", 1, "", "07:15", c.Defaults()),
	}

	for name, policy := range policies {
		t.Run(name, func(t *testing.T) {
			slots := c.CalculateSlots(policy, 12, fixedNow)
			prev := fixedNow
			for i, slot := range slots {
				if !slot.After(prev) {
					t.Fatalf("slot %d (%v) not strictly after %v", i, slot, prev)
				}
				prev = slot
			}
		})
	}
}

func TestCalculateSlots_WeeklySkipsToTargetDay(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("week", 1, "monday,thursday", "09:00", c.Defaults())

	// Wednesday 10:00 -> following Thursday 09:00.
	start := time.Date(2026, time.January, 7, 10, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 1, start)

	want := time.Date(2026, time.January, 8, 9, 0, 0, 0, time.UTC)
	if !slots[0].Equal(want) {
		t.Fatalf("got %v, want %v", slots[0], want)
	}
}

func TestCalculateSlots_WeeklyEqualInstantAdvancesFullWeek(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("week", 1, "monday", "09:00", c.Defaults())

	// Monday 09:00 exactly: the equal instant is rejected, so the search
	// advances day by day to the next Monday.
	start := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 1, start)

	want := time.Date(2026, time.January, 12, 9, 0, 0, 0, time.UTC)
	if !slots[0].Equal(want) {
		t.Fatalf("got %v, want %v", slots[0], want)
	}
}

func TestCalculateSlots_WeeklyConformance(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("week", 1, "wednesday,sunday", "21:45", c.Defaults())

	for _, slot := range c.CalculateSlots(policy, 20, fixedNow) {
		if slot.Weekday() != time.Wednesday && slot.Weekday() != time.Sunday {
			t.Errorf("slot %v falls on %v", slot, slot.Weekday())
		}
		if slot.Hour() != 21 || slot.Minute() != 45 {
			t.Errorf("slot %v not at 21:45", slot)
		}
	}
}

func TestCalculateSlots_DailySnapsThenChains(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("day", 1, "", "08:00", c.Defaults())

	// Monday 07:00 -> Monday 08:00, then Tuesday 08:00.
	start := time.Date(2026, time.January, 5, 7, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 2, start)

	first := time.Date(2026, time.January, 5, 8, 0, 0, 0, time.UTC)
	second := time.Date(2026, time.January, 6, 8, 0, 0, 0, time.UTC)
	if !slots[0].Equal(first) {
		t.Fatalf("first slot %v, want %v", slots[0], first)
	}
	if !slots[1].Equal(second) {
		t.Fatalf("second slot %v, want %v", slots[1], second)
	}
}

func TestCalculateSlots_DailySpacing(t *testing.T) {
	c := testCalculator()

	t.Run("once_daily_24h_apart", func(t *testing.T) {
		policy := ParsePolicy("day", 1, "", "10:30", c.Defaults())
		slots := c.CalculateSlots(policy, 6, fixedNow)
		for i := 1; i < len(slots); i++ {
			if got := slots[i].Sub(slots[i-1]); got != 24*time.Hour {
				t.Errorf("slots %d..%d spaced %v, want 24h", i-1, i, got)
			}
		}
		for _, slot := range slots {
			if slot.Hour() != 10 || slot.Minute() != 30 {
				t.Errorf("slot %v not at 10:30", slot)
			}
		}
	})

	t.Run("four_daily_6h_apart", func(t *testing.T) {
		policy := ParsePolicy("day", 4, "", "10:30", c.Defaults())
		start := time.Date(2026, time.January, 5, 7, 0, 0, 0, time.UTC)
		slots := c.CalculateSlots(policy, 4, start)
		for i := 1; i < len(slots); i++ {
			if got := slots[i].Sub(slots[i-1]); got != 6*time.Hour {
				t.Errorf("slots %d..%d spaced %v, want 6h", i-1, i, got)
			}
		}
	})
}

func TestCalculateSlots_MonthlyTargetDay(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("month", 1, "15", "12:00", c.Defaults())

	start := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 3, start)

	want := []time.Time{
		time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Errorf("slot %d: got %v, want %v", i, slots[i], want[i])
		}
	}
}

func TestCalculateSlots_MonthlyClampsToShortMonth(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("month", 1, "31", "12:00", c.Defaults())

	// April has 30 days: the day-31 slot clamps to April 30.
	start := time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 2, start)

	april := time.Date(2026, time.April, 30, 12, 0, 0, 0, time.UTC)
	may := time.Date(2026, time.May, 31, 12, 0, 0, 0, time.UTC)
	if !slots[0].Equal(april) {
		t.Fatalf("first slot %v, want %v", slots[0], april)
	}
	if !slots[1].Equal(may) {
		t.Fatalf("second slot %v, want %v", slots[1], may)
	}
}

func TestCalculateSlots_MonthlyRollsOverWhenPassed(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("month", 1, "5", "09:00", c.Defaults())

	// January 5 09:00 exactly: equal instant rejected, rolls to February.
	start := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 1, start)

	want := time.Date(2026, time.February, 5, 9, 0, 0, 0, time.UTC)
	if !slots[0].Equal(want) {
		t.Fatalf("got %v, want %v", slots[0], want)
	}
}

func TestCalculateSlots_UnknownPeriodFallsBack24h(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("quarter", 1, "", "07:15", c.Defaults())

	start := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	slots := c.CalculateSlots(policy, 1, start)

	want := time.Date(2026, time.January, 6, 7, 15, 0, 0, time.UTC)
	if !slots[0].Equal(want) {
		t.Fatalf("got %v, want %v", slots[0], want)
	}
}

func TestCalculateSlots_ClampsStaleStart(t *testing.T) {
	c := testCalculator()
	policy := ParsePolicy("day", 1, "", "08:00", c.Defaults())

	stale := c.CalculateSlots(policy, 3, fixedNow.Add(-48*time.Hour))
	fresh := c.CalculateSlots(policy, 3, fixedNow)

	for i := range fresh {
		if !stale[i].Equal(fresh[i]) {
			t.Errorf("slot %d: stale start gave %v, now gave %v", i, stale[i], fresh[i])
		}
	}
	if stale[0].Before(fixedNow) {
		t.Errorf("first slot %v is in the past", stale[0])
	}
}

func TestCalculateSlots_ArithmeticInConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := NewCalculator(StandardDefaults(), loc)
	c.now = func() time.Time { return fixedNow }

	policy := ParsePolicy("day", 1, "", "08:00", c.Defaults())
	slots := c.CalculateSlots(policy, 1, fixedNow)

	if slots[0].Location() != loc {
		t.Fatalf("slot location %v, want %v", slots[0].Location(), loc)
	}
	if slots[0].Hour() != 8 {
		t.Fatalf("slot hour %d in configured zone, want 8", slots[0].Hour())
	}
}

func TestCalculateSlots_NilPolicy(t *testing.T) {
	c := testCalculator()
	if got := c.CalculateSlots(nil, 5, fixedNow); len(got) != 0 {
		t.Fatalf("nil policy: got %d slots, want 0", len(got))
	}
}
