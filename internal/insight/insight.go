// Package insight writes short coaching notes from aggregated weekly volume.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/muscle"
	"github.com/irontracks/musclemap/internal/volume"
)

// Limits applied to model output.
const (
	maxSummary      = 8
	maxAlerts       = 6
	maxAlertMuscles = 6
	maxRecs         = 6
	maxActions      = 5
	maxType         = 60
	maxSeverity     = 20
	maxText         = 240
	maxTitle        = 80
)

// DefaultTitle names a recommendation that came with actions only.
const DefaultTitle = "Recomendação"

// Severity levels. Unknown or missing severities become SeverityInfo.
const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// Alert flags a volume imbalance.
type Alert struct {
	Type       string   `json:"type"`
	Severity   string   `json:"severity"`
	Muscles    []string `json:"muscles"`
	Evidence   string   `json:"evidence"`
	Suggestion string   `json:"suggestion"`
}

// Recommendation is a titled list of actions.
type Recommendation struct {
	Title   string   `json:"title"`
	Actions []string `json:"actions"`
}

// Insights is the narrative part of a weekly summary.
type Insights struct {
	Summary         []string         `json:"summary"`
	ImbalanceAlerts []Alert          `json:"imbalanceAlerts"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Empty returns insights with empty, non-nil lists.
func Empty() Insights {
	return Insights{Summary: []string{}, ImbalanceAlerts: []Alert{}, Recommendations: []Recommendation{}}
}

// IsZero reports insights with nothing in them.
func (in Insights) IsZero() bool {
	return len(in.Summary) == 0 && len(in.ImbalanceAlerts) == 0 && len(in.Recommendations) == 0
}

// MuscleSets is a muscle's rounded weekly total.
type MuscleSets struct {
	Sets  float64 `json:"sets"`
	Label string  `json:"label"`
}

// Target is a muscle's weekly target range.
type Target struct {
	MinSets int    `json:"minSets"`
	MaxSets int    `json:"maxSets"`
	Label   string `json:"label"`
}

// Input is the data the model is allowed to reason about.
type Input struct {
	WeekStartDate string                   `json:"weekStartDate"`
	Muscles       map[muscle.ID]MuscleSets `json:"muscles"`
	Targets       map[muscle.ID]Target     `json:"targets"`
	WorkoutsCount int                      `json:"workoutsCount"`
}

// NewInput builds the model input from the top muscles of r and the full
// target catalog.
func NewInput(weekStart string, r *volume.Result, workouts int) Input {
	in := Input{
		WeekStartDate: weekStart,
		Muscles:       make(map[muscle.ID]MuscleSets, len(r.TopMuscles)),
		Targets:       make(map[muscle.ID]Target, len(muscle.Groups)),
		WorkoutsCount: workouts,
	}
	for _, m := range r.TopMuscles {
		in.Muscles[m.ID] = MuscleSets{Sets: m.Sets, Label: m.Label}
	}
	for _, g := range muscle.Groups {
		in.Targets[g.ID] = Target{MinSets: g.MinSets, MaxSets: g.MaxSets, Label: g.Label}
	}
	return in
}

// Composer asks the completion model for weekly insights.
type Composer struct {
	completer ai.Completer
}

// NewComposer creates a composer. A nil completer makes every call fail
// with ai.ErrMissingAPIKey.
func NewComposer(c ai.Completer) *Composer {
	return &Composer{completer: c}
}

// Compose returns normalized insights for in. A reply that normalizes to
// nothing is an error so callers keep their previous insights.
func (c *Composer) Compose(ctx context.Context, in Input) (Insights, error) {
	if c == nil || c.completer == nil {
		return Insights{}, ai.ErrMissingAPIKey
	}
	data, err := json.Marshal(in)
	if err != nil {
		return Insights{}, fmt.Errorf("encoding insight input: %w", err)
	}
	text, err := c.completer.Complete(ctx, prompt(data))
	if err != nil {
		return Insights{}, fmt.Errorf("generating insights: %w", err)
	}
	raw, ok := ai.ExtractJSON(text)
	if !ok {
		return Insights{}, ai.ErrNoJSON
	}
	out, err := Normalize(raw)
	if err != nil {
		return Insights{}, err
	}
	if out.IsZero() {
		return Insights{}, ai.ErrEmptyResponse
	}
	return out, nil
}

func prompt(data []byte) string {
	return strings.Join([]string{
		"Você é um coach de musculação do app IronTracks.",
		"Escreva insights curtos sobre a semana de treino com base nos volumes por músculo abaixo.",
		"Responda APENAS com JSON válido, em pt-BR, sem inventar números.",
		`Formato: {"summary":["..."],"imbalanceAlerts":[{"type":"","severity":"info|warn|critical","muscles":[""],"evidence":"","suggestion":""}],"recommendations":[{"title":"","actions":[""]}]}`,
		"Dados:",
		string(data),
	}, "\n")
}

// Normalize decodes a model reply leniently and applies the output limits.
// Alerts without type and suggestion and recommendations without title and
// actions are dropped.
func Normalize(raw []byte) (Insights, error) {
	var doc struct {
		Summary         any `json:"summary"`
		ImbalanceAlerts any `json:"imbalanceAlerts"`
		Recommendations any `json:"recommendations"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Insights{}, fmt.Errorf("decoding insights: %w", err)
	}

	out := Empty()
	out.Summary = limit(toStrings(asSlice(doc.Summary)), maxSummary)

	for _, v := range asSlice(doc.ImbalanceAlerts) {
		a, _ := v.(map[string]any)
		alert := Alert{
			Type:       ai.Truncate(toString(a["type"]), maxType),
			Severity:   severity(ai.Truncate(toString(a["severity"]), maxSeverity)),
			Muscles:    limit(toStrings(asSlice(a["muscles"])), maxAlertMuscles),
			Evidence:   ai.Truncate(toString(a["evidence"]), maxText),
			Suggestion: ai.Truncate(toString(a["suggestion"]), maxText),
		}
		if alert.Type == "" && alert.Suggestion == "" {
			continue
		}
		out.ImbalanceAlerts = append(out.ImbalanceAlerts, alert)
		if len(out.ImbalanceAlerts) == maxAlerts {
			break
		}
	}

	for _, v := range asSlice(doc.Recommendations) {
		r, _ := v.(map[string]any)
		rec := Recommendation{
			Title:   ai.Truncate(toString(r["title"]), maxTitle),
			Actions: limit(toStrings(asSlice(r["actions"])), maxActions),
		}
		if rec.Title == "" && len(rec.Actions) == 0 {
			continue
		}
		if rec.Title == "" {
			rec.Title = DefaultTitle
		}
		out.Recommendations = append(out.Recommendations, rec)
		if len(out.Recommendations) == maxRecs {
			break
		}
	}
	return out, nil
}

func severity(s string) string {
	switch strings.ToLower(s) {
	case SeverityWarn, "warning":
		return SeverityWarn
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// toStrings keeps the non-empty string forms of vs.
func toStrings(vs []any) []string {
	out := []string{}
	for _, v := range vs {
		if s := toString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
