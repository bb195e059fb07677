package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/irontracks/musclemap/internal/engine"
)

// --- Tool definitions ---

var toolWeeklyVolume = mcp.NewTool("get_weekly_muscle_volume",
	mcp.WithDescription("Weekly set-equivalents per muscle group (Monday to Sunday) with target ranges, top muscles, top exercises per muscle, unmapped exercises and optional AI insights. Results are cached for a few hours."),
	mcp.WithString("week_start", mcp.Description("Any date in the week (YYYY-MM-DD). Defaults to the current week.")),
	mcp.WithBoolean("refresh_cache", mcp.Description("Recompute even when a fresh cached summary exists.")),
	mcp.WithBoolean("refresh_ai", mcp.Description("Classify unmapped exercises with AI and regenerate insights. Rate limited.")),
)

var toolDailyVolume = mcp.NewTool("get_daily_muscle_volume",
	mcp.WithDescription("Set-equivalents per muscle group for one local calendar day. Never cached."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Day (YYYY-MM-DD)")),
	mcp.WithNumber("tz_offset_minutes", mcp.Description("Minutes to add to local time to get UTC (e.g. 180 for UTC-3). Defaults to 0.")),
	mcp.WithBoolean("refresh_ai", mcp.Description("Classify unmapped exercises with AI before aggregating.")),
)

var toolClassifyExercises = mcp.NewTool("classify_exercises",
	mcp.WithDescription("Map exercise names to weighted muscle contributions. Heuristics first, AI for the rest; results are stored for future aggregations."),
	mcp.WithArray("names", mcp.Required(), mcp.Description("Exercise names (up to 60)"), mcp.WithStringItems()),
)

// --- Tool handlers ---

func (h *handlers) weeklyVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.ds.Week(ctx, UserIDFromContext(ctx), engine.WeekRequest{
		WeekStart:    req.GetString("week_start", ""),
		RefreshCache: req.GetBool("refresh_cache", false),
		RefreshAI:    req.GetBool("refresh_ai", false),
	})
	return h.result("get_weekly_muscle_volume", res, err)
}

func (h *handlers) dailyVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date parameter is required"), nil
	}
	dayReq := engine.DayRequest{Date: date, RefreshAI: req.GetBool("refresh_ai", false)}
	if _, ok := req.GetArguments()["tz_offset_minutes"]; ok {
		offset := req.GetFloat("tz_offset_minutes", 0)
		dayReq.TZOffsetMinutes = &offset
	}
	res, err := h.ds.Day(ctx, UserIDFromContext(ctx), dayReq)
	return h.result("get_daily_muscle_volume", res, err)
}

func (h *handlers) classifyExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := req.RequireStringSlice("names")
	if err != nil {
		return mcp.NewToolResultError("names parameter is required"), nil
	}
	res, err := h.ds.Classify(ctx, UserIDFromContext(ctx), names)
	return h.result("classify_exercises", res, err)
}

func (h *handlers) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
