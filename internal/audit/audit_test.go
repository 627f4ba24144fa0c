package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"feedbacketl/internal/feedback"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

var header = strings.Join(feedback.Header(), ",")

func messages(r Report) string {
	var b strings.Builder
	for _, p := range r.Problems {
		b.WriteString(p.String())
		b.WriteString("\n")
	}
	return b.String()
}

func TestCheck_Clean(t *testing.T) {
	p := write(t, "ok.csv", "\xef\xbb\xbf"+header+"\nAna,5,4,5,5,4,Nada,Bien,2024-01-01,123,Kinesióloga\n")
	r := Check(p, Options{})
	if !r.OK() {
		t.Fatalf("problems:\n%s", messages(r))
	}
	if r.Rows != 1 || r.Columns != feedback.NumColumns {
		t.Fatalf("rows=%d columns=%d", r.Rows, r.Columns)
	}
}

func TestCheck_Findings(t *testing.T) {
	hdr := strings.Replace(header, "satisfaccion_diseño", "satisfaccion_diseno", 1) + ",extra"
	body := hdr + "\n" +
		",,,,,,,,,,,\n" +
		"Ana,5,,,,,,,,,,\n" +
		"JosÃ©,5,4,5,5,4,x,y,2024-01-01,1,TO,z\n"
	r := Check(write(t, "bad.csv", body), Options{})

	out := messages(r)
	for _, want := range []string{
		"error: has 12 columns, expected 11",
		"error: missing column satisfaccion_diseño",
		"error: line 2: row is completely empty",
		"warning: line 3: row has only 2 non-empty cells",
		"possible double-encoded text",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if !r.HasErrors() || r.OK() {
		t.Fatal("expected a failing report")
	}
}

func TestCheck_HeaderOnlyIsWarning(t *testing.T) {
	r := Check(write(t, "h.csv", header+"\n"), Options{})
	if r.OK() || r.HasErrors() {
		t.Fatalf("problems:\n%s", messages(r))
	}
	if !strings.Contains(messages(r), "header only") {
		t.Fatalf("problems:\n%s", messages(r))
	}
}

func TestCheck_Unreadable(t *testing.T) {
	reports := CheckAll([]string{
		filepath.Join(t.TempDir(), "missing.csv"),
		write(t, "empty.csv", ""),
	}, Options{})
	for _, r := range reports {
		if !r.HasErrors() || !strings.Contains(messages(r), "cannot read file") {
			t.Errorf("%s:\n%s", r.Path, messages(r))
		}
	}
}
