package capacity

import "context"

// Store is the counter side of the record store. Increment and decrement are
// single atomic operations in every backend; decrement never goes below zero.
type Store interface {
	IncrementAttendantCapacity(ctx context.Context, attendantID string) (int, error)
	DecrementAttendantCapacity(ctx context.Context, attendantID string) (int, error)
	CountOpenRoomsByAttendant(ctx context.Context, attendantID string) (int, error)
	SetAttendantCapacity(ctx context.Context, attendantID string, count int) error
}
