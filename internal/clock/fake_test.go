package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_NowAdvances(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := Fake(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())
}

func TestFakeClock_AfterFiresOnAdvance(t *testing.T) {
	clk := Fake(time.Now())
	ch := clk.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("fired before the clock moved")
	default:
	}

	clk.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before the deadline")
	default:
	}

	clk.Advance(time.Second)
	select {
	case fired := <-ch:
		assert.Equal(t, clk.Now(), fired)
	default:
		t.Fatal("did not fire at the deadline")
	}
}

func TestFakeClock_AfterImmediateForNonPositive(t *testing.T) {
	clk := Fake(time.Now())

	select {
	case <-clk.After(0):
	default:
		t.Fatal("zero-duration After did not fire immediately")
	}
}

func TestFakeClock_TickerRepeats(t *testing.T) {
	clk := Fake(time.Now())
	ticker := clk.NewTicker(time.Minute)
	defer ticker.Stop()

	clk.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after one interval")
	}

	clk.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after the second interval")
	}
}

func TestFakeClock_TickerDropsWhenBehind(t *testing.T) {
	clk := Fake(time.Now())
	ticker := clk.NewTicker(time.Minute)
	defer ticker.Stop()

	// Three intervals pass unconsumed; only one tick is pending.
	clk.Advance(3 * time.Minute)

	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("ticks queued beyond channel capacity")
	default:
	}
}

func TestFakeClock_StoppedTickerStaysQuiet(t *testing.T) {
	clk := Fake(time.Now())
	ticker := clk.NewTicker(time.Minute)
	ticker.Stop()

	clk.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("tick after Stop")
	default:
	}
}

func TestFakeClock_WaitersFireInDeadlineOrder(t *testing.T) {
	clk := Fake(time.Now())

	late := clk.After(10 * time.Second)
	early := clk.After(2 * time.Second)

	clk.Advance(30 * time.Second)

	earlyAt := <-early
	lateAt := <-late
	require.True(t, earlyAt.Before(lateAt))
}

func TestRealClock_Basics(t *testing.T) {
	clk := Real()

	before := time.Now()
	now := clk.Now()
	assert.False(t, now.Before(before.Add(-time.Second)))

	ticker := clk.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C:
	case <-time.After(2 * time.Second):
		t.Fatal("real ticker never ticked")
	}
}
