package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingStop is a stop not yet attached to any round, presented to the
// dispatch allocator. It either becomes a Stop on a resolved round or is
// reported back as unassignable.
type PendingStop struct {
	StopID   uuid.UUID
	Name     string
	Kind     StopKind
	Location *Coordinates
	Window   *TimeWindow

	Products []ProductLine
	Options  []Option

	ServiceDuration time.Duration
}

// ToStop materializes the pending stop as a member of the given round.
// The caller is responsible for placing it at its insertion position.
func (p *PendingStop) ToStop(roundID uuid.UUID) *Stop {
	id := p.StopID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Stop{
		StopID:          id,
		RoundID:         roundID,
		Kind:            p.Kind,
		Products:        append([]ProductLine(nil), p.Products...),
		Options:         append([]Option(nil), p.Options...),
		ServiceDuration: p.ServiceDuration,
	}
	if p.Location != nil {
		loc := *p.Location
		s.Location = &loc
	}
	if p.Window != nil {
		w := *p.Window
		s.Window = &w
	}
	if s.ServiceDuration == 0 && (len(p.Products) > 0 || len(p.Options) > 0) {
		s.RefreshServiceDuration()
	}
	return s
}
