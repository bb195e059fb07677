package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/irontracks/musclemap/internal/ai"
	"github.com/irontracks/musclemap/internal/exercise"
	"github.com/irontracks/musclemap/internal/muscle"
	"github.com/irontracks/musclemap/internal/session"
)

// Classifier resolves items by asking the completion model, batchSize
// names per call and at most budget names per Resolve.
type Classifier struct {
	completer ai.Completer
	batchSize int
	budget    int
}

// NewClassifier creates the AI strategy. A non-positive batchSize sends
// the whole budget in one call; a non-positive budget classifies nothing.
func NewClassifier(c ai.Completer, batchSize, budget int) *Classifier {
	if batchSize <= 0 {
		batchSize = budget
	}
	return &Classifier{completer: c, batchSize: batchSize, budget: budget}
}

func (c *Classifier) Name() string { return StrategyAI }

// Resolve classifies up to budget items in batches. It stops at the first
// failing batch and returns what earlier batches produced with the error.
func (c *Classifier) Resolve(ctx context.Context, _ int, items []Item) (map[string]Entry, error) {
	found := map[string]Entry{}
	if c.completer == nil {
		return found, ai.ErrMissingAPIKey
	}
	if len(items) > c.budget {
		items = items[:max(c.budget, 0)]
	}
	for i := 0; i < len(items); i += c.batchSize {
		batch := items[i:min(i+c.batchSize, len(items))]
		got, err := c.classify(ctx, batch)
		for k, e := range got {
			found[k] = e
		}
		if err != nil {
			return found, err
		}
	}
	return found, nil
}

func (c *Classifier) classify(ctx context.Context, batch []Item) (map[string]Entry, error) {
	names := make([]string, len(batch))
	for i, it := range batch {
		names[i] = it.CanonicalName
	}
	text, err := c.completer.Complete(ctx, classifyPrompt(names))
	if err != nil {
		return nil, fmt.Errorf("classifying %d exercises: %w", len(batch), err)
	}
	raw, ok := ai.ExtractJSON(text)
	if !ok {
		return nil, ai.ErrNoJSON
	}
	var reply struct {
		Items []classifiedItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decoding classification: %w", err)
	}

	requested := make(map[string]Item, len(batch))
	for _, it := range batch {
		requested[it.Key] = it
	}
	found := map[string]Entry{}
	for _, ci := range reply.Items {
		it, ok := requested[exercise.Key(ci.Name)]
		if !ok {
			it, ok = requested[exercise.Key(ci.CanonicalName)]
		}
		if !ok {
			continue
		}
		m := ci.mapping()
		if m.Empty() {
			continue
		}
		found[it.Key] = Entry{
			Key:           it.Key,
			CanonicalName: it.CanonicalName,
			Mapping:       m,
			Source:        SourceAI,
		}
	}
	return found, nil
}

type classifiedItem struct {
	Name          string `json:"name"`
	CanonicalName string `json:"canonical_name"`
	Contributions []struct {
		MuscleID string             `json:"muscleId"`
		Weight   session.FlexNumber `json:"weight"`
		Role     string             `json:"role"`
	} `json:"contributions"`
	Unilateral bool               `json:"unilateral"`
	Confidence session.FlexNumber `json:"confidence"`
	Notes      string             `json:"notes"`
}

func (ci classifiedItem) mapping() Mapping {
	in := make([]Contribution, 0, len(ci.Contributions))
	for _, c := range ci.Contributions {
		if c.Weight.Value == nil {
			continue
		}
		in = append(in, Contribution{
			MuscleID: muscle.ID(strings.TrimSpace(c.MuscleID)),
			Weight:   *c.Weight.Value,
			Role:     Role(c.Role),
		})
	}
	return Mapping{
		Contributions: Sanitize(in, false),
		Unilateral:    ci.Unilateral,
		Confidence:    clampConfidence(ci.Confidence.Value),
		Notes:         ai.Truncate(ci.Notes, maxNotes),
	}
}

func classifyPrompt(names []string) string {
	var b strings.Builder
	b.WriteString("Você é um coach de musculação do app IronTracks. ")
	b.WriteString("Classifique cada exercício nos grupos musculares trabalhados.\n")
	b.WriteString("Responda APENAS com JSON no formato:\n")
	b.WriteString(`{"items":[{"name":"","canonical_name":"","contributions":[{"muscleId":"","weight":0.5,"role":"primary|secondary|stabilizer"}],"unilateral":false,"confidence":0.8,"notes":""}]}`)
	b.WriteString("\nOs pesos de cada exercício devem somar 1. Use somente estes muscleId:\n")
	for _, g := range muscle.Groups {
		fmt.Fprintf(&b, "- %s: %s\n", g.ID, g.Label)
	}
	b.WriteString("Exercícios:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}
