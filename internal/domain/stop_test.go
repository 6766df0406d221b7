package domain

import (
	"testing"
	"time"
)

func TestComputeServiceDuration(t *testing.T) {
	products := []ProductLine{
		{Product: Product{Name: "fridge", InstallDuration: 20 * time.Minute, UninstallDuration: 10 * time.Minute}, Quantity: 1},
		{Product: Product{Name: "washer", InstallDuration: 30 * time.Minute, UninstallDuration: 15 * time.Minute}, Quantity: 2},
	}
	options := []Option{
		{Name: "stairs", ExtraDuration: 5 * time.Minute},
	}

	delivery := ComputeServiceDuration(StopKindDelivery, products, options)
	if want := 85 * time.Minute; delivery != want {
		t.Fatalf("delivery duration = %v, want %v", delivery, want)
	}

	pickup := ComputeServiceDuration(StopKindPickup, products, options)
	if want := 45 * time.Minute; pickup != want {
		t.Fatalf("pickup duration = %v, want %v", pickup, want)
	}

	// A combined stop does both kinds of work; only the option extra is
	// counted once.
	both := ComputeServiceDuration(StopKindDeliveryAndPickup, products, options)
	if want := delivery + pickup - 5*time.Minute; both != want {
		t.Fatalf("delivery_and_pickup duration = %v, want %v", both, want)
	}
}

func TestComputeServiceDurationOptionsApplyToEveryKind(t *testing.T) {
	options := []Option{{Name: "appointment call", ExtraDuration: 7 * time.Minute}}

	for _, kind := range []StopKind{StopKindDelivery, StopKindPickup, StopKindDeliveryAndPickup} {
		got := ComputeServiceDuration(kind, nil, options)
		if got != 7*time.Minute {
			t.Errorf("kind %s: duration = %v, want %v", kind, got, 7*time.Minute)
		}
	}
}

func TestRefreshServiceDuration(t *testing.T) {
	stop := &Stop{
		Kind: StopKindDelivery,
		Products: []ProductLine{
			{Product: Product{InstallDuration: 10 * time.Minute}, Quantity: 3},
		},
	}

	if got := stop.RefreshServiceDuration(); got != 30*time.Minute {
		t.Fatalf("refreshed duration = %v, want %v", got, 30*time.Minute)
	}
	if stop.ServiceDuration != 30*time.Minute {
		t.Fatalf("cached duration = %v, want %v", stop.ServiceDuration, 30*time.Minute)
	}
}

func TestTimeWindowOverlapsPadded(t *testing.T) {
	w := TimeWindow{
		Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
	}

	inside := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if !w.OverlapsPadded(inside, 0) {
		t.Fatal("arrival inside window should overlap")
	}

	early := time.Date(2026, 1, 5, 8, 45, 0, 0, time.UTC)
	if w.OverlapsPadded(early, 0) {
		t.Fatal("early arrival without tolerance should not overlap")
	}
	if !w.OverlapsPadded(early, 30*time.Minute) {
		t.Fatal("early arrival within tolerance should overlap")
	}

	late := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	if w.OverlapsPadded(late, 30*time.Minute) {
		t.Fatal("arrival an hour past the window should not overlap with 30m tolerance")
	}
}

func TestTimeWindowLatenessAt(t *testing.T) {
	w := TimeWindow{
		Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
	}

	onTime := time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC)
	if got := w.LatenessAt(onTime); got != 0 {
		t.Fatalf("lateness = %v, want 0", got)
	}

	late := time.Date(2026, 1, 5, 11, 45, 0, 0, time.UTC)
	if got := w.LatenessAt(late); got != 45*time.Minute {
		t.Fatalf("lateness = %v, want %v", got, 45*time.Minute)
	}
}
