package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"feedbacketl/internal/feedback"
)

func writeUnified(t *testing.T, dir string) string {
	t.Helper()
	body := "\xef\xbb\xbf" + strings.Join(feedback.Header(), ",") + "\n" +
		"Ana,9,8,9,9,8,Nada,Muy útil,2024-01-01,123,Kinesióloga\n" +
		"Luis,4,5,4,5,3,Agregar gráficos,Es lento y difícil de imprimir,2024-01-02,456,Médico\n" +
		"Ana,10,9,10,9,9,-,,2024-01-03,123,Kinesióloga\n"
	p := filepath.Join(dir, "validacion_unificado.csv")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRun_Stdout(t *testing.T) {
	t.Parallel()

	in := writeUnified(t, t.TempDir())
	var stdout, stderr bytes.Buffer
	if code := run([]string{in}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%q", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"# Informe de validación",
		"Respuestas: 3",
		"## Clasificación de comentarios",
		"- \"Muy útil\"",
		"- Agregar gráficos",
		"| Ana ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "- Nada") || strings.Contains(out, "\n- -\n") {
		t.Errorf("placeholder modifications should be skipped:\n%s", out)
	}
}

func TestRun_OutFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeUnified(t, dir)
	outPath := filepath.Join(dir, "informes", "informe.md")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-out", outPath, in}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "3 responses -> "+outPath) {
		t.Fatalf("stdout=%q", stdout.String())
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(b), "# Informe de validación") {
		t.Fatalf("unexpected report:\n%s", b)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "missing_input", args: []string{filepath.Join(t.TempDir(), "nope.csv")}, want: 1},
		{name: "two_inputs", args: []string{"a.csv", "b.csv"}, want: 2},
		{name: "bad_flag", args: []string{"-nope"}, want: 2},
	}
	for _, tc := range tests {
		var stdout, stderr bytes.Buffer
		if code := run(tc.args, &stdout, &stderr); code != tc.want {
			t.Errorf("%s: exit=%d, want %d (stderr=%q)", tc.name, code, tc.want, stderr.String())
		}
	}
}
