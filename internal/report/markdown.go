package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// WriteMarkdown renders s as a markdown document. Table columns are padded
// to the display width of their widest cell so the source reads well in a
// terminal too.
func WriteMarkdown(w io.Writer, s Summary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Informe de validación\n\nRespuestas: %d\n\n", s.Rows)

	bw.WriteString("## Resultados cuantitativos\n\n")
	rows := [][]string{{"Métrica", "n", "Media", "Mediana", "Mín", "Máx"}}
	for _, st := range s.Scores {
		if st.N == 0 {
			rows = append(rows, []string{st.Label, "0", "-", "-", "-", "-"})
			continue
		}
		rows = append(rows, []string{
			st.Label,
			strconv.Itoa(st.N),
			fmt.Sprintf("%.2f", st.Mean),
			num(st.Median),
			num(st.Min),
			num(st.Max),
		})
	}
	writeTable(bw, rows)

	bw.WriteString("\n## Clasificación de comentarios\n\n")
	rows = [][]string{{"Clasificación", "Comentarios"}}
	for _, c := range Classes {
		rows = append(rows, []string{string(c), strconv.Itoa(s.Classes[c])})
	}
	rows = append(rows, []string{"sin respuesta", strconv.Itoa(s.NoComment)})
	writeTable(bw, rows)

	writeList(bw, "Comentarios positivos", s.Positive, true)
	writeList(bw, "Mejoras sugeridas en comentarios", s.Suggestions, false)
	writeList(bw, "Secciones a modificar", s.Modifications, false)

	if len(s.ByProfessional) > 0 {
		bw.WriteString("\n## Respuestas por profesional\n\n")
		rows = [][]string{{"Profesional", "Respuestas"}}
		for _, c := range s.ByProfessional {
			rows = append(rows, []string{c.Name, strconv.Itoa(c.N)})
		}
		writeTable(bw, rows)
	}
	return bw.Flush()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeList(w *bufio.Writer, title string, items []string, quote bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n## %s\n\n", title)
	for _, it := range items {
		if quote {
			fmt.Fprintf(w, "- \"%s\"\n", it)
		} else {
			fmt.Fprintf(w, "- %s\n", it)
		}
	}
}

// writeTable writes rows as a markdown table; rows[0] is the header. Every
// column after the first is right-aligned.
func writeTable(w *bufio.Writer, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, c := range r {
			if cw := runewidth.StringWidth(escapeCell(c)); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	line := func(cells []string) {
		w.WriteString("|")
		for i, c := range cells {
			c = escapeCell(c)
			if i == 0 {
				c = runewidth.FillRight(c, widths[i])
			} else {
				c = runewidth.FillLeft(c, widths[i])
			}
			w.WriteString(" " + c + " |")
		}
		w.WriteString("\n")
	}

	line(rows[0])
	w.WriteString("|")
	for i, wd := range widths {
		if i == 0 {
			w.WriteString(" " + strings.Repeat("-", wd) + " |")
		} else {
			w.WriteString(" " + strings.Repeat("-", wd-1) + ": |")
		}
	}
	w.WriteString("\n")
	for _, r := range rows[1:] {
		line(r)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
