package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Class is the automatic classification of a free-text comment.
type Class string

const (
	Positivo Class = "positivo"
	Negativo Class = "negativo"
	Mixto    Class = "mixto"
	Neutral  Class = "neutral"
)

// Classes in display order.
var Classes = []Class{Positivo, Negativo, Mixto, Neutral}

// Keyword lists are matched as substrings of the folded comment.
var (
	PositiveKeywords = []string{
		"excelente", "muy bueno", "bueno", "buena", "bien", "muy bien",
		"práctica", "practico", "útil", "muy útil", "organizado",
		"organizada", "ágil", "eficiente", "claro", "interesante",
		"funciona bien", "recomendable", "me facilita", "gran proyecto",
		"herramienta de registro",
	}
	NegativeKeywords = []string{
		"difícil", "lento", "complicado", "malo", "problema",
		"mejorar", "deficiente",
	}
)

// Comments that carry no content once folded.
var irrelevant = map[string]bool{
	"nada": true, "si algo": true, ".": true, "nada mas": true, "no tengo": true,
}

// Fold lowercases s and strips combining marks, so "Útil" and "util" compare
// equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Fold(s)
	}
	return out
}

var (
	foldedPositive = foldAll(PositiveKeywords)
	foldedNegative = foldAll(NegativeKeywords)
)

func containsAny(text string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classify labels a comment by keyword presence.
func Classify(comment string) Class {
	text := Fold(comment)
	pos := containsAny(text, foldedPositive)
	neg := containsAny(text, foldedNegative)
	switch {
	case pos && neg:
		return Mixto
	case pos:
		return Positivo
	case neg:
		return Negativo
	default:
		return Neutral
	}
}

// suggestionThemes map folded trigger words to a summarized improvement.
var suggestionThemes = []struct {
	triggers []string
	text     string
}{
	{[]string{"informe", "imprimir"}, "Generar una versión de informe para imprimir."},
	{[]string{"pdf"}, "Permitir exportar e importar archivos en PDF."},
	{[]string{"color", "contraste"}, "Mejorar colores y contraste de la app."},
}

// Suggestions summarizes non-positive comments into distinct improvement
// themes, in first-seen order.
func Suggestions(comments []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range comments {
		if c == "" || Classify(c) == Positivo {
			continue
		}
		text := Fold(strings.TrimSpace(c))
		if irrelevant[text] {
			continue
		}
		for _, th := range suggestionThemes {
			if containsAny(text, th.triggers) && !seen[th.text] {
				seen[th.text] = true
				out = append(out, th.text)
				break
			}
		}
	}
	return out
}
