package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/typedwire/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	c := clock.Real{}

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", got, before, after)
	}
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2017, 2, 1, 15, 50, 1, 0, time.UTC)
	c := clock.NewFake(start)

	if !c.Now().Equal(start) || !c.Now().Equal(start) {
		t.Error("a fake clock without a step should not move")
	}

	c.Advance(time.Hour)
	if got := c.Now(); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("after Advance Now() = %v", got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("after Set Now() = %v", got)
	}
}

func TestStepping(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewStepping(start, time.Second)

	for i := 0; i < 3; i++ {
		want := start.Add(time.Duration(i) * time.Second)
		if got := c.Now(); !got.Equal(want) {
			t.Errorf("reading %d = %v, want %v", i, got, want)
		}
	}
}
