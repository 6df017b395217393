package dataset

// SurveyRowLimit bounds the survey tallies to the answered block of the El Consuelo sheet.
const SurveyRowLimit = 442

// CleanlinessQuestion is scored 1..5; any other answer is tallied as NoAnswer.
const CleanlinessQuestion = "Como calificaria la limpieza general del barrio"

const NoAnswer = "No responde"

// DefaultSurveyQuestions are the El Consuelo survey columns charted on the neighbourhood page.
var DefaultSurveyQuestions = []string{
	"Sexo",
	"Nivel educativo",
	"¿Hace cuanto tiempo reside en el barrio?",
	CleanlinessQuestion,
	"¿Con qué frecuencia observa residuos en las calles o zonas comunes?",
	"¿Considera que la acumulación de residuos afecta la imagen del barrio?",
	"¿Considera que el tema de residuos esta relacionado con el tema de seguridad del barrio?",
	"¿Considera que la acumulación de residuos afecta su calidad de vida?",
	"¿Separa los residuos en su casa (orgánicos, reciclables, no reciclables)?",
	"¿Conoce el horario de recolección de residuos en el barrio?",
	"¿Saca los residuos en los horarios establecidos?",
	"¿Entrega sus residuos aprovechables a un recuperador de oficio?",
	"¿En que lugar dispone los residuos?",
	"¿Cómo calificaría la operación del servicio de aseo de Promoambiental Distrito S.A.S?",
	"¿Con qué frecuencia pasa el camión recolector de residuos?",
	"¿Ha participado en alguna campaña de limpieza o educación ambiental en su barrio?",
	"¿Le gustaría participar en iniciativas comunitarias de limpieza?",
	"¿Considera que hace falta más educación ambiental en el barrio?",
	"¿Sabe que es un punto critico?",
	"¿Identifica puntos críticos en el barrio?",
	"¿Cada cuanto tiempo ve estos puntos en el barrio?",
}

type QuestionTally struct {
	Question string       `json:"question"`
	Counts   []ValueCount `json:"counts"`
}

type Survey struct {
	Responses int             `json:"total"`
	Questions []QuestionTally `json:"questions"`
}

// SurveyCounts tallies answers for each question over the first SurveyRowLimit rows.
func SurveyCounts(rows []Row, questions []string) Survey {
	s := Survey{Responses: len(rows), Questions: make([]QuestionTally, 0, len(questions))}
	for _, q := range questions {
		var counts []ValueCount
		if q == CleanlinessQuestion {
			counts = tally(rows, q, SurveyRowLimit, scoreAnswer)
		} else {
			counts = ValueCounts(rows, q, SurveyRowLimit)
		}
		if counts == nil {
			counts = []ValueCount{}
		}
		s.Questions = append(s.Questions, QuestionTally{Question: q, Counts: counts})
	}
	return s
}

func scoreAnswer(v string) (string, bool) {
	switch v {
	case "":
		return "", false
	case "1", "2", "3", "4", "5":
		return v, true
	default:
		return NoAnswer, true
	}
}
