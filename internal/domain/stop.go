package domain

import (
	"time"

	"github.com/google/uuid"
)

// StopKind classifies what happens at a stop.
type StopKind string

const (
	StopKindDelivery          StopKind = "delivery"
	StopKindPickup            StopKind = "pickup"
	StopKindDeliveryAndPickup StopKind = "delivery_and_pickup"
)

// Product carries the per-unit install/uninstall durations used to derive
// a stop's service duration.
type Product struct {
	ProductID         uuid.UUID
	Name              string
	InstallDuration   time.Duration
	UninstallDuration time.Duration
}

// ProductLine is a (product, quantity) pair referenced by a stop.
type ProductLine struct {
	Product  Product
	Quantity int
}

// Option adds a fixed extra duration to a stop regardless of its kind.
type Option struct {
	OptionID      uuid.UUID
	Name          string
	ExtraDuration time.Duration
}

// Represents a single visit within a Round.
// OrderIndex is unique and contiguous (0..n-1) within the owning round.
// Stops may lack coordinates; they stay in sequence but contribute
// zero-length legs to distance computation.
type Stop struct {
	StopID  uuid.UUID
	RoundID uuid.UUID

	Kind     StopKind
	Location *Coordinates
	Window   *TimeWindow

	Products []ProductLine
	Options  []Option

	// ServiceDuration is cached; recompute it whenever the stop's
	// products, options or kind change.
	ServiceDuration time.Duration

	OrderIndex int

	// EstimatedArrival is owned by the stats engine; the actual
	// timestamps are written by the operational workflow.
	EstimatedArrival *time.Time
	ActualArrival    *time.Time
	ActualDeparture  *time.Time
}

// Geocoded reports whether the stop has usable coordinates.
func (s *Stop) Geocoded() bool { return s.Location != nil }

// ComputeServiceDuration derives a stop's on-site duration:
// delivery sums install durations, pickup sums uninstall durations,
// delivery_and_pickup sums both; option extras apply to every kind.
func ComputeServiceDuration(kind StopKind, products []ProductLine, options []Option) time.Duration {
	var total time.Duration
	for _, line := range products {
		qty := time.Duration(line.Quantity)
		switch kind {
		case StopKindDelivery:
			total += line.Product.InstallDuration * qty
		case StopKindPickup:
			total += line.Product.UninstallDuration * qty
		case StopKindDeliveryAndPickup:
			total += (line.Product.InstallDuration + line.Product.UninstallDuration) * qty
		}
	}
	for _, opt := range options {
		total += opt.ExtraDuration
	}
	return total
}

// RefreshServiceDuration recomputes and caches the stop's service duration.
func (s *Stop) RefreshServiceDuration() time.Duration {
	s.ServiceDuration = ComputeServiceDuration(s.Kind, s.Products, s.Options)
	return s.ServiceDuration
}

// Clone returns a deep copy safe to mutate independently.
func (s *Stop) Clone() *Stop {
	out := *s
	if s.Location != nil {
		loc := *s.Location
		out.Location = &loc
	}
	if s.Window != nil {
		w := *s.Window
		out.Window = &w
	}
	if s.EstimatedArrival != nil {
		t := *s.EstimatedArrival
		out.EstimatedArrival = &t
	}
	out.Products = append([]ProductLine(nil), s.Products...)
	out.Options = append([]Option(nil), s.Options...)
	return &out
}
