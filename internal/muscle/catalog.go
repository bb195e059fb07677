package muscle

import (
	"math"
	"strings"
)

// ID identifies a muscle group on the body map.
type ID string

const (
	Chest          ID = "chest"
	DeltsFront     ID = "delts_front"
	DeltsSide      ID = "delts_side"
	DeltsRear      ID = "delts_rear"
	Biceps         ID = "biceps"
	Triceps        ID = "triceps"
	Abs            ID = "abs"
	Quads          ID = "quads"
	Calves         ID = "calves"
	Lats           ID = "lats"
	UpperBack      ID = "upper_back"
	SpinalErectors ID = "spinal_erectors"
	Glutes         ID = "glutes"
	Hamstrings     ID = "hamstrings"
)

// View is the side of the body map a muscle is drawn on.
type View string

const (
	Front View = "front"
	Back  View = "back"
)

// Group is a static muscle group definition. MinSets and MaxSets are the
// weekly target range used for display only.
type Group struct {
	ID      ID     `json:"id"`
	Label   string `json:"label"`
	MinSets int    `json:"minSets"`
	MaxSets int    `json:"maxSets"`
	View    View   `json:"view"`
}

// Midpoint returns the center of the weekly target range.
func (g Group) Midpoint() float64 {
	return float64(g.MinSets+g.MaxSets) / 2
}

// Groups is the compiled-in catalog, in display order.
var Groups = []Group{
	{ID: Chest, Label: "Peitoral", MinSets: 10, MaxSets: 20, View: Front},
	{ID: DeltsFront, Label: "Deltoide anterior", MinSets: 6, MaxSets: 12, View: Front},
	{ID: DeltsSide, Label: "Deltoide lateral", MinSets: 8, MaxSets: 16, View: Front},
	{ID: Biceps, Label: "Bíceps", MinSets: 8, MaxSets: 14, View: Front},
	{ID: Triceps, Label: "Tríceps", MinSets: 8, MaxSets: 14, View: Back},
	{ID: Abs, Label: "Abdômen", MinSets: 6, MaxSets: 12, View: Front},
	{ID: Quads, Label: "Quadríceps", MinSets: 10, MaxSets: 18, View: Front},
	{ID: Calves, Label: "Panturrilhas", MinSets: 8, MaxSets: 14, View: Back},
	{ID: Lats, Label: "Dorsais", MinSets: 10, MaxSets: 18, View: Back},
	{ID: UpperBack, Label: "Costas superiores", MinSets: 8, MaxSets: 16, View: Back},
	{ID: DeltsRear, Label: "Deltoide posterior", MinSets: 6, MaxSets: 12, View: Back},
	{ID: SpinalErectors, Label: "Eretores da espinha", MinSets: 4, MaxSets: 8, View: Back},
	{ID: Glutes, Label: "Glúteos", MinSets: 8, MaxSets: 16, View: Back},
	{ID: Hamstrings, Label: "Posteriores de coxa", MinSets: 8, MaxSets: 14, View: Back},
}

var byID = func() map[ID]Group {
	m := make(map[ID]Group, len(Groups))
	for _, g := range Groups {
		m[g.ID] = g
	}
	return m
}()

// aliases maps legacy or loose ids found in stored rows onto catalog ids.
var aliases = map[string]ID{
	"abdominals":       Abs,
	"abdomen":          Abs,
	"abs_upper":        Abs,
	"abs_lower":        Abs,
	"core":             Abs,
	"obliques":         Abs,
	"rectus_abdominis": Abs,
	"pecs":             Chest,
	"pectorals":        Chest,
	"shoulders_front":  DeltsFront,
	"front_delts":      DeltsFront,
	"anterior_delts":   DeltsFront,
	"shoulders_side":   DeltsSide,
	"side_delts":       DeltsSide,
	"lateral_delts":    DeltsSide,
	"shoulders_rear":   DeltsRear,
	"rear_delts":       DeltsRear,
	"posterior_delts":  DeltsRear,
	"traps":            UpperBack,
	"trapezius":        UpperBack,
	"rhomboids":        UpperBack,
	"lower_back":       SpinalErectors,
	"erectors":         SpinalErectors,
	"quadriceps":       Quads,
	"glute":            Glutes,
	"gluteus":          Glutes,
	"hamstring":        Hamstrings,
	"calf":             Calves,
	"latissimus":       Lats,
}

// Lookup returns the catalog entry for id.
func Lookup(id ID) (Group, bool) {
	g, ok := byID[id]
	return g, ok
}

// Valid reports whether s is a catalog id, exactly as written.
func Valid(s string) bool {
	_, ok := byID[ID(s)]
	return ok
}

// Coerce maps s onto a catalog id, accepting known aliases. Used for rows
// written by older classifiers; fresh classifier output is checked with Valid.
func Coerce(s string) (ID, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := byID[ID(s)]; ok {
		return ID(s), true
	}
	id, ok := aliases[s]
	return id, ok
}

// Ratio returns weekly sets relative to the midpoint of the target range,
// or 0 when the group has no target.
func Ratio(sets float64, g Group) float64 {
	mid := g.Midpoint()
	if mid <= 0 {
		return 0
	}
	return sets / mid
}

// Color bands for the body map, dimmest first.
const (
	ColorNone     = "#0b1220"
	ColorLow      = "#111827"
	ColorModerate = "#1f2937"
	ColorTarget   = "#f59e0b"
	ColorHigh     = "#fb923c"
	ColorMaxed    = "#ef4444"
)

// Color returns the body-map color for a ratio.
func Color(ratio float64) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 0
	}
	switch {
	case ratio <= 0.15:
		return ColorNone
	case ratio <= 0.35:
		return ColorLow
	case ratio <= 0.6:
		return ColorModerate
	case ratio <= 0.9:
		return ColorTarget
	case ratio <= 1.2:
		return ColorHigh
	default:
		return ColorMaxed
	}
}
