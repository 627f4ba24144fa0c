// Package feedback defines the canonical survey-feedback schema shared by every
// stage of the normalize/merge pipeline, plus single-record validation.
//
// Every table produced by this module has exactly the columns in Columns, in
// that order, regardless of the shape of the input it came from.
package feedback

// Canonical column names.
const (
	NombreProfesional    = "nombre_profesional"
	Utilidad             = "utilidad"
	Eficiencia           = "eficiencia"
	IntencionUso         = "intencion_uso"
	SatisfaccionClaridad = "satisfaccion_claridad"
	SatisfaccionDiseno   = "satisfaccion_diseño"
	ModificarSecciones   = "modificar_secciones"
	Comentarios          = "comentarios"
	FechaEnvio           = "fecha_envio"
	CedulaProfesional    = "cedula_profesional"
	ProfesionProfesional = "profesion_profesional"
)

// NumColumns is the width of every canonical table.
const NumColumns = 11

// Columns is the canonical header, in output order.
var Columns = [NumColumns]string{
	NombreProfesional,
	Utilidad,
	Eficiencia,
	IntencionUso,
	SatisfaccionClaridad,
	SatisfaccionDiseno,
	ModificarSecciones,
	Comentarios,
	FechaEnvio,
	CedulaProfesional,
	ProfesionProfesional,
}

// ScoreColumns are the numeric 0..10 ratings.
var ScoreColumns = []string{
	Utilidad,
	Eficiencia,
	IntencionUso,
	SatisfaccionClaridad,
	SatisfaccionDiseno,
}

// FreeTextColumns hold open-ended answers subject to the length guard.
var FreeTextColumns = []string{ModificarSecciones, Comentarios}

// RequiredColumns must be non-empty for a single submitted record.
var RequiredColumns = append([]string{NombreProfesional}, ScoreColumns...)

var columnIndex = func() map[string]int {
	m := make(map[string]int, NumColumns)
	for i, c := range Columns {
		m[c] = i
	}
	return m
}()

// Index returns the position of a canonical column, or -1.
func Index(name string) int {
	if i, ok := columnIndex[name]; ok {
		return i
	}
	return -1
}

// IsCanonical reports whether name is one of Columns.
func IsCanonical(name string) bool {
	_, ok := columnIndex[name]
	return ok
}

// IsFreeText reports whether the column at index i is a free-text field.
func IsFreeText(i int) bool {
	return i == columnIndex[ModificarSecciones] || i == columnIndex[Comentarios]
}

// Header returns a fresh copy of Columns as a slice.
func Header() []string {
	out := make([]string, NumColumns)
	copy(out, Columns[:])
	return out
}

// Record is one canonical row. Absent values are the empty string.
type Record [NumColumns]string

// Get returns the value of a canonical column, or "" for unknown names.
func (r Record) Get(name string) string {
	i := Index(name)
	if i < 0 {
		return ""
	}
	return r[i]
}

// Set assigns a canonical column and reports whether name was known.
func (r *Record) Set(name, v string) bool {
	i := Index(name)
	if i < 0 {
		return false
	}
	r[i] = v
	return true
}

// Table is an ordered set of canonical rows. Its header is always Columns.
type Table struct {
	Rows []Record
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Column returns every value of a canonical column, in row order.
func (t Table) Column(name string) []string {
	i := Index(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, rec := range t.Rows {
		out[r] = rec[i]
	}
	return out
}
