package mapping

import (
	"strings"

	"github.com/irontracks/musclemap/internal/exercise"
	"github.com/irontracks/musclemap/internal/muscle"
)

// abbreviations expands common shorthand before matching.
var abbreviations = map[string]string{
	"db":   "dumbbell",
	"bb":   "barbell",
	"kb":   "kettlebell",
	"ohp":  "overhead press",
	"rdl":  "romanian deadlift",
	"sldl": "stiff",
	"incl": "incline",
	"ext":  "extension",
	"abd":  "abdominal",
}

// unilateralMarkers flag one-side-at-a-time variants.
var unilateralMarkers = []string{
	"unilateral", "single arm", "single leg", "alternado", "alternada",
	"um braco", "uma perna", "one arm", "one leg",
}

type rule struct {
	phrases    []string
	weights    []Contribution
	confidence float64
	unilateral bool
}

func c(id muscle.ID, w float64, r Role) Contribution {
	return Contribution{MuscleID: id, Weight: w, Role: r}
}

// rules are checked in order and the first match wins, so specific
// variants come before the movement families that contain them.
var rules = []rule{
	{
		phrases:    []string{"crucifixo inverso", "reverse fly", "reverse pec deck", "voador invertido", "face pull", "facepull", "deltoide posterior", "delt posterior", "rear delt"},
		weights:    []Contribution{c(muscle.DeltsRear, 0.6, Primary), c(muscle.UpperBack, 0.4, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"elevacao lateral", "lateral raise", "abducao de ombro"},
		weights:    []Contribution{c(muscle.DeltsSide, 1, Primary)},
		confidence: 0.85,
	},
	{
		phrases:    []string{"elevacao frontal", "front raise"},
		weights:    []Contribution{c(muscle.DeltsFront, 1, Primary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"remada alta", "upright row"},
		weights:    []Contribution{c(muscle.DeltsSide, 0.6, Primary), c(muscle.UpperBack, 0.4, Secondary)},
		confidence: 0.7,
	},
	{
		phrases:    []string{"desenvolvimento", "overhead press", "shoulder press", "military press", "arnold"},
		weights:    []Contribution{c(muscle.DeltsFront, 0.5, Primary), c(muscle.DeltsSide, 0.25, Secondary), c(muscle.Triceps, 0.25, Secondary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"supino fechado", "close grip bench", "close grip"},
		weights:    []Contribution{c(muscle.Triceps, 0.5, Primary), c(muscle.Chest, 0.4, Secondary), c(muscle.DeltsFront, 0.1, Stabilizer)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"supino inclinado", "incline bench", "incline press", "incline dumbbell press"},
		weights:    []Contribution{c(muscle.Chest, 0.6, Primary), c(muscle.DeltsFront, 0.25, Secondary), c(muscle.Triceps, 0.15, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"supino", "bench press", "chest press"},
		weights:    []Contribution{c(muscle.Chest, 0.7, Primary), c(muscle.Triceps, 0.2, Secondary), c(muscle.DeltsFront, 0.1, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"crucifixo", "fly", "flye", "peck deck", "pec deck", "voador", "crossover", "cross over"},
		weights:    []Contribution{c(muscle.Chest, 0.85, Primary), c(muscle.DeltsFront, 0.15, Secondary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"flexao", "push up", "pushup"},
		weights:    []Contribution{c(muscle.Chest, 0.6, Primary), c(muscle.Triceps, 0.25, Secondary), c(muscle.DeltsFront, 0.15, Secondary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"mesa flexora", "cadeira flexora", "flexora", "leg curl", "hamstring curl", "nordic"},
		weights:    []Contribution{c(muscle.Hamstrings, 1, Primary)},
		confidence: 0.85,
	},
	{
		phrases:    []string{"cadeira extensora", "extensora", "leg extension"},
		weights:    []Contribution{c(muscle.Quads, 1, Primary)},
		confidence: 0.85,
	},
	{
		phrases:    []string{"hip thrust", "elevacao pelvica", "glute bridge", "ponte", "gluteo", "glute kickback", "coice gluteo"},
		weights:    []Contribution{c(muscle.Glutes, 0.85, Primary), c(muscle.Hamstrings, 0.15, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"abdutora", "abducao", "abduction", "abductor"},
		weights:    []Contribution{c(muscle.Glutes, 1, Primary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"triceps", "testa", "frances", "pushdown", "push down", "skull crusher", "kickback", "coice", "mergulho no banco", "bench dip"},
		weights:    []Contribution{c(muscle.Triceps, 1, Primary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"paralela", "paralelas", "dip", "dips", "mergulho"},
		weights:    []Contribution{c(muscle.Triceps, 0.45, Primary), c(muscle.Chest, 0.4, Primary), c(muscle.DeltsFront, 0.15, Secondary)},
		confidence: 0.7,
	},
	{
		phrases:    []string{"rosca", "curl", "biceps", "scott"},
		weights:    []Contribution{c(muscle.Biceps, 1, Primary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"barra fixa", "pull up", "pullup", "chin up", "chinup"},
		weights:    []Contribution{c(muscle.Lats, 0.65, Primary), c(muscle.Biceps, 0.2, Secondary), c(muscle.UpperBack, 0.15, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"puxada", "pulldown", "pull down", "lat pull"},
		weights:    []Contribution{c(muscle.Lats, 0.7, Primary), c(muscle.Biceps, 0.15, Secondary), c(muscle.UpperBack, 0.15, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"pullover", "pull over"},
		weights:    []Contribution{c(muscle.Lats, 0.6, Primary), c(muscle.Chest, 0.4, Secondary)},
		confidence: 0.7,
	},
	{
		phrases:    []string{"remada", "row", "serrote"},
		weights:    []Contribution{c(muscle.UpperBack, 0.45, Primary), c(muscle.Lats, 0.35, Primary), c(muscle.Biceps, 0.1, Secondary), c(muscle.DeltsRear, 0.1, Secondary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"encolhimento", "shrug"},
		weights:    []Contribution{c(muscle.UpperBack, 1, Primary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"terra romeno", "romanian deadlift", "stiff", "good morning", "bom dia"},
		weights:    []Contribution{c(muscle.Hamstrings, 0.5, Primary), c(muscle.Glutes, 0.3, Secondary), c(muscle.SpinalErectors, 0.2, Stabilizer)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"levantamento terra", "terra", "deadlift", "sumo"},
		weights:    []Contribution{c(muscle.Glutes, 0.3, Primary), c(muscle.Hamstrings, 0.25, Primary), c(muscle.SpinalErectors, 0.25, Secondary), c(muscle.Quads, 0.2, Secondary)},
		confidence: 0.75,
	},
	{
		phrases:    []string{"afundo", "passada", "lunge", "bulgaro", "split squat", "avanco", "step up"},
		weights:    []Contribution{c(muscle.Quads, 0.5, Primary), c(muscle.Glutes, 0.4, Primary), c(muscle.Hamstrings, 0.1, Secondary)},
		confidence: 0.75,
		unilateral: true,
	},
	{
		phrases:    []string{"leg press"},
		weights:    []Contribution{c(muscle.Quads, 0.65, Primary), c(muscle.Glutes, 0.25, Secondary), c(muscle.Hamstrings, 0.1, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"agachamento", "squat", "hack"},
		weights:    []Contribution{c(muscle.Quads, 0.6, Primary), c(muscle.Glutes, 0.3, Secondary), c(muscle.Hamstrings, 0.1, Secondary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"panturrilha", "calf", "calves", "gemeos", "soleo"},
		weights:    []Contribution{c(muscle.Calves, 1, Primary)},
		confidence: 0.85,
	},
	{
		phrases:    []string{"abdominal", "abdomen", "prancha", "plank", "crunch", "abs", "infra", "supra", "elevacao de pernas", "leg raise", "russian twist"},
		weights:    []Contribution{c(muscle.Abs, 1, Primary)},
		confidence: 0.8,
	},
	{
		phrases:    []string{"lombar", "hiperextensao", "hyperextension", "back extension", "extensao lombar"},
		weights:    []Contribution{c(muscle.SpinalErectors, 0.6, Primary), c(muscle.Glutes, 0.25, Secondary), c(muscle.Hamstrings, 0.15, Secondary)},
		confidence: 0.75,
	},
}

// Classify maps an exercise name onto muscles with keyword rules. It
// reports false when no rule matches.
func Classify(name string) (Mapping, bool) {
	n := expand(exercise.Normalize(name))
	if n == "" {
		return Mapping{}, false
	}
	for _, r := range rules {
		if !containsAny(n, r.phrases) {
			continue
		}
		return Mapping{
			Contributions: Sanitize(r.weights, false),
			Unilateral:    r.unilateral || containsAny(n, unilateralMarkers),
			Confidence:    r.confidence,
			Notes:         "heuristic",
		}, true
	}
	return Mapping{}, false
}

func expand(n string) string {
	words := strings.Fields(n)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// containsAny matches whole words only, so "row" does not match "arrow".
func containsAny(n string, phrases []string) bool {
	padded := " " + n + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
