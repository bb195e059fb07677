package exercise

// aliases maps normalized names onto a shared canonical display name.
var aliases = map[string]string{
	"bench press":           "Supino reto",
	"barbell bench press":   "Supino reto",
	"supino reto":           "Supino reto",
	"supino barra":          "Supino reto",
	"supino com barra":      "Supino reto",
	"supino reto com barra": "Supino reto",

	"supino halter reto":   "Supino reto com halteres",
	"supino reto halteres": "Supino reto com halteres",
	"dumbbell bench press": "Supino reto com halteres",

	"pull up":    "Barra fixa",
	"pullup":     "Barra fixa",
	"chin up":    "Barra fixa",
	"barra fixa": "Barra fixa",

	"lat pulldown":      "Puxada alta",
	"puxada na polia":   "Puxada alta",
	"puxada alta":       "Puxada alta",
	"leg press":         "Leg press",
	"agachamento livre": "Agachamento livre",
	"squat":             "Agachamento livre",

	"romanian deadlift": "Terra romeno",
	"rdl":               "Terra romeno",
	"deadlift":          "Levantamento terra",

	"shoulder press":          "Desenvolvimento",
	"overhead press":          "Desenvolvimento",
	"military press":          "Desenvolvimento",
	"desenvolvimento militar": "Desenvolvimento",

	"facepull":  "Face pull",
	"face pull": "Face pull",
}
