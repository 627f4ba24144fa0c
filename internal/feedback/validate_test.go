package feedback

import (
	"errors"
	"testing"
)

func validFields() map[string]string {
	return map[string]string{
		NombreProfesional:    "Juan Pérez",
		Utilidad:             "5",
		Eficiencia:           "4",
		IntencionUso:         "8",
		SatisfaccionClaridad: "5",
		SatisfaccionDiseno:   "4",
		ModificarSecciones:   "Agregaría más opciones, pero está bien",
		Comentarios:          "Muy buena aplicación!",
		FechaEnvio:           "2024-01-01 10:00:00",
		CedulaProfesional:    "12345678",
		ProfesionProfesional: "Psicólogo",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]string)
		field  string
		want   error
	}{
		{name: "valid", mutate: func(map[string]string) {}},
		{name: "utilidad_out_of_range", mutate: func(m map[string]string) { m[Utilidad] = "15" }, field: Utilidad, want: ErrOutOfRange},
		{name: "negative_score", mutate: func(m map[string]string) { m[Eficiencia] = "-1" }, field: Eficiencia, want: ErrOutOfRange},
		{name: "bounds_inclusive", mutate: func(m map[string]string) { m[Eficiencia] = "0"; m[Utilidad] = "10" }},
		{name: "decimal_score", mutate: func(m map[string]string) { m[IntencionUso] = "7.5" }},
		{name: "not_a_number", mutate: func(m map[string]string) { m[SatisfaccionDiseno] = "bueno" }, field: SatisfaccionDiseno, want: ErrNotNumber},
		{name: "nan_score", mutate: func(m map[string]string) { m[Utilidad] = "NaN" }, field: Utilidad, want: ErrNotNumber},
		{name: "infinite_score", mutate: func(m map[string]string) { m[Utilidad] = "Inf" }, field: Utilidad, want: ErrOutOfRange},
		{name: "missing_name", mutate: func(m map[string]string) { delete(m, NombreProfesional) }, field: NombreProfesional, want: ErrRequired},
		{name: "blank_score", mutate: func(m map[string]string) { m[SatisfaccionClaridad] = "  " }, field: SatisfaccionClaridad, want: ErrRequired},
		{name: "optional_blank_ok", mutate: func(m map[string]string) { m[Comentarios] = ""; delete(m, FechaEnvio) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := validFields()
			tc.mutate(m)
			errs := Validate(m)

			if tc.want == nil {
				if len(errs) != 0 {
					t.Fatalf("Validate()=%v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors (%v), want 1", len(errs), errs)
			}
			if errs[0].Field != tc.field {
				t.Fatalf("error field=%q, want %q", errs[0].Field, tc.field)
			}
			if !errors.Is(errs[0], tc.want) {
				t.Fatalf("error=%v, want %v", errs[0], tc.want)
			}
		})
	}
}

func TestCheck_ValidationErrorNamesField(t *testing.T) {
	m := validFields()
	m[Utilidad] = "15"

	err := Check(m)
	if err == nil {
		t.Fatalf("Check() = nil, want error")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Check() error type=%T, want *ValidationError", err)
	}
	if !ve.Has(Utilidad) {
		t.Fatalf("ValidationError does not name %q: %v", Utilidad, err)
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("errors.Is(err, ErrOutOfRange)=false; err=%v", err)
	}
}

func TestRecordFromMap(t *testing.T) {
	m := validFields()
	m["extra"] = "x"
	m["another"] = "y"

	rec, ignored := RecordFromMap(m)
	if got := rec.Get(ProfesionProfesional); got != "Psicólogo" {
		t.Fatalf("profesion=%q", got)
	}
	if len(ignored) != 2 || ignored[0] != "another" || ignored[1] != "extra" {
		t.Fatalf("ignored=%v, want [another extra]", ignored)
	}
}

func TestIndexAndHeader(t *testing.T) {
	if Index(SatisfaccionDiseno) != 5 {
		t.Fatalf("Index(%q)=%d, want 5", SatisfaccionDiseno, Index(SatisfaccionDiseno))
	}
	if Index("satisfaccion_diseno") != -1 {
		t.Fatalf("no-diacritic spelling must not be canonical")
	}
	h := Header()
	h[0] = "mutated"
	if Columns[0] != NombreProfesional {
		t.Fatalf("Header() aliases Columns")
	}
	if !IsFreeText(Index(Comentarios)) || IsFreeText(Index(Utilidad)) {
		t.Fatalf("IsFreeText misclassifies columns")
	}
}
