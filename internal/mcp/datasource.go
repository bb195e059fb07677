package mcp

import (
	"context"

	"github.com/irontracks/musclemap/internal/engine"
)

// DataSource abstracts the data layer for MCP tools. Both *engine.Engine
// (local store) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Week(ctx context.Context, userID int, req engine.WeekRequest) (*engine.WeekResult, error)
	Day(ctx context.Context, userID int, req engine.DayRequest) (*engine.DayResult, error)
	Classify(ctx context.Context, userID int, names []string) (*engine.ClassifyResult, error)
}

// Compile-time check: *engine.Engine satisfies DataSource.
var _ DataSource = (*engine.Engine)(nil)
