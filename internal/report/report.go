// Package report summarizes a unified feedback table: score statistics,
// comment classification, requested section changes and responses per
// professional.
package report

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"feedbacketl/internal/feedback"
)

// ScoreLabels are the display names of the score columns.
var ScoreLabels = map[string]string{
	feedback.Utilidad:             "Utilidad",
	feedback.Eficiencia:           "Eficiencia",
	feedback.IntencionUso:         "Intención de uso",
	feedback.SatisfaccionClaridad: "Claridad y facilidad",
	feedback.SatisfaccionDiseno:   "Diseño visual",
}

// ScoreStats describe the numeric cells of one score column. Cells that are
// blank or not numbers are not counted.
type ScoreStats struct {
	Column string
	Label  string
	N      int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// Count is a value with its number of occurrences.
type Count struct {
	Name string
	N    int
}

// Summary is everything the markdown report shows about one table.
type Summary struct {
	Rows   int
	Scores []ScoreStats

	Classes   map[Class]int
	NoComment int
	Positive  []string
	// Suggestions are improvement themes drawn from the comments.
	Suggestions []string
	// Modifications are the non-placeholder modificar_secciones answers.
	Modifications []string

	ByProfessional []Count
}

var placeholder = regexp.MustCompile(`^(Nada|-|None|nan|\.|\s*)$`)

// IsPlaceholder reports answers that mean "nothing to change".
func IsPlaceholder(s string) bool {
	return placeholder.MatchString(strings.Join(strings.Fields(s), " "))
}

// Summarize computes the report figures for t. Cells that do not parse as a
// finite number are left out of the score statistics.
func Summarize(t feedback.Table) Summary {
	s := Summary{Rows: t.Len(), Classes: make(map[Class]int, len(Classes))}

	for _, col := range feedback.ScoreColumns {
		s.Scores = append(s.Scores, scoreStats(col, t.Column(col)))
	}

	comments := t.Column(feedback.Comentarios)
	for _, c := range comments {
		if strings.TrimSpace(c) == "" {
			s.NoComment++
			continue
		}
		cl := Classify(c)
		s.Classes[cl]++
		if cl == Positivo {
			s.Positive = append(s.Positive, c)
		}
	}
	s.Suggestions = Suggestions(comments)

	for _, m := range t.Column(feedback.ModificarSecciones) {
		if !IsPlaceholder(m) {
			s.Modifications = append(s.Modifications, m)
		}
	}

	s.ByProfessional = countValues(t.Column(feedback.NombreProfesional))
	return s
}

func scoreStats(col string, cells []string) ScoreStats {
	st := ScoreStats{Column: col, Label: ScoreLabels[col]}
	var vals []float64
	for _, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		vals = append(vals, v)
	}
	st.N = len(vals)
	if st.N == 0 {
		return st
	}
	sort.Float64s(vals)

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	st.Mean = sum / float64(st.N)
	st.Min = vals[0]
	st.Max = vals[st.N-1]
	if st.N%2 == 1 {
		st.Median = vals[st.N/2]
	} else {
		st.Median = (vals[st.N/2-1] + vals[st.N/2]) / 2
	}
	return st
}

// countValues counts non-blank values, most frequent first, ties by name.
func countValues(vals []string) []Count {
	counts := map[string]int{}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			counts[v]++
		}
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Name: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Name < out[j].Name
	})
	return out
}
