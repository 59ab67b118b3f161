package dhcp

import (
	"log/slog"
	"net"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, nil))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDispatcherBlacklistTiming(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	d := NewDispatcher(true, 10, 150, testLogger())

	d.Blacklist(mac, "test", 3)
	if !d.IsIgnored(mac) {
		t.Fatal("expected mac to be ignored immediately after blacklist")
	}

	for i := 0; i < 2; i++ {
		d.Tick()
		if !d.IsIgnored(mac) {
			t.Fatalf("mac unignored too early, at tick %d", i+1)
		}
	}

	d.Tick() // third tick: timeout exhausted
	if d.IsIgnored(mac) {
		t.Fatal("expected mac to be unignored after exactly T ticks")
	}
}

func TestDispatcherSuspendTripsOnThreshold(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:02")
	d := NewDispatcher(true, 3, 150, testLogger())

	for i := 0; i < 3; i++ {
		d.RecordAction(mac)
		if d.IsIgnored(mac) {
			t.Fatalf("mac suspended too early, at action %d", i+1)
		}
	}
	d.RecordAction(mac) // 4th action exceeds threshold of 3
	if !d.IsIgnored(mac) {
		t.Fatal("expected mac to be suspended after exceeding threshold")
	}
}

func TestDispatcherSuspendDisabled(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:03")
	d := NewDispatcher(false, 1, 150, testLogger())

	for i := 0; i < 10; i++ {
		d.RecordAction(mac)
	}
	if d.IsIgnored(mac) {
		t.Fatal("expected no suspend when enable_suspend is false")
	}
}
