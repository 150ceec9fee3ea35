package dto

import "chat-routing-backend/internal/service/automation"

type SweepResponse struct {
	Processed  int   `json:"processed"`
	Tenants    int   `json:"tenants"`
	Rooms      int   `json:"rooms"`
	Closed     int   `json:"closed"`
	Errors     int   `json:"errors"`
	DurationMs int64 `json:"durationMs"`
}

func ToSweepResponse(r automation.SweepResult) SweepResponse {
	return SweepResponse{
		Processed:  r.Processed,
		Tenants:    r.Tenants,
		Rooms:      r.Rooms,
		Closed:     r.Closed,
		Errors:     r.Errors,
		DurationMs: r.Duration.Milliseconds(),
	}
}
