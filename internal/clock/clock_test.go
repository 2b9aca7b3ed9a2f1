package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	c := NewFakeClock(time.Date(2023, 10, 16, 12, 0, 0, 0, time.UTC))

	ch := c.After(time.Minute)
	select {
	case <-ch:
		t.Fatal("timer fired before the clock advanced")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case at := <-ch:
		assert.Equal(t, c.Now(), at)
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeClockAfterNonPositiveFiresImmediately(t *testing.T) {
	c := NewFakeClock(time.Date(2023, 10, 16, 12, 0, 0, 0, time.UTC))

	select {
	case <-c.After(0):
	default:
		t.Fatal("zero-duration timer did not fire")
	}
	select {
	case <-c.After(-time.Second):
	default:
		t.Fatal("negative-duration timer did not fire")
	}
}

func TestFakeClockSetReleasesWaiters(t *testing.T) {
	base := time.Date(2023, 10, 16, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(base)

	ch := c.After(time.Hour)
	c.Set(base.Add(2 * time.Hour))

	select {
	case <-ch:
	default:
		t.Fatal("timer did not fire when the clock jumped past it")
	}
	require.Equal(t, base.Add(2*time.Hour), c.Now())
}
