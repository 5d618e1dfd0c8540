package booking

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// overlap. Back-to-back intervals sharing a boundary do not.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// CheckAvailability returns the ids of confirmed bookings on the resource
// conflicting with [start, end). Pending bookings never block: they may
// expire or fail payment. The excluded id (if non-zero) is ignored so a
// booking can be re-checked against everyone but itself.
func (e *Engine) CheckAvailability(ctx context.Context, resourceID string, start, end time.Time, exclude primitive.ObjectID) ([]primitive.ObjectID, error) {
	existing, err := e.bookings.FindConfirmedOverlapping(ctx, resourceID, start, end, exclude)
	if err != nil {
		return nil, err
	}

	var conflicting []primitive.ObjectID
	for _, b := range existing {
		// the store query already filters on the interval; keep the pure
		// predicate as the source of truth
		if Overlaps(start, end, b.StartTime, b.EndTime) {
			conflicting = append(conflicting, b.ID)
		}
	}
	return conflicting, nil
}
