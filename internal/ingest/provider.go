// Package ingest holds what every import source reports back.
package ingest

// Result is the outcome of an import.
type Result struct {
	SessionsReceived int    `json:"sessions_received"`
	WorkoutsInserted int    `json:"workouts_inserted"`
	WorkoutsUpdated  int    `json:"workouts_updated"`
	SetsReceived     int    `json:"sets_received"`
	Message          string `json:"message,omitempty"`
}
