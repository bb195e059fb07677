package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workout is a stored training session. Notes holds the session document
// (exercises and set logs) as written by the client or an importer.
type Workout struct {
	ID         uuid.UUID
	UserID     int
	Name       string
	Date       time.Time
	Source     string
	Notes      []byte
	IsTemplate bool
	CreatedAt  time.Time
}

// Workout sources.
const (
	SourceApp   = "app"
	SourceAlpha = "alpha_progression"
)

// WorkoutID derives a stable id for an imported session so that importing
// the same export twice updates rows instead of duplicating them.
func WorkoutID(userID int, source string, date time.Time, name string) uuid.UUID {
	seed := fmt.Sprintf("%d|%s|%s|%s", userID, source, date.UTC().Format(time.RFC3339), name)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}
