package sanitize

import "strings"

// mojibakePairs maps UTF-8 text that was decoded as Latin-1/Windows-1252 and
// re-encoded back to the intended character.
var mojibakePairs = []string{
	"Ã±", "ñ",
	"Ã¡", "á",
	"Ã©", "é",
	"Ã\u00ad", "í", // U+00AD soft hyphen
	"Ã³", "ó",
	"Ãº", "ú",
	"Ã‘", "Ñ",
	"Ã¼", "ü",
	"Ã‰", "É",
	"Ã“", "Ó",
	"Ãš", "Ú",
	"Â¿", "¿",
	"Â¡", "¡",
	// Same defects when the intermediate decode was ISO-8859-1.
	"Ã\u0091", "Ñ",
	"Ã\u0089", "É",
	"Ã\u0093", "Ó",
	"Ã\u009a", "Ú",
}

var mojibakeReplacer = strings.NewReplacer(mojibakePairs...)

// MojibakeMarker appears in text that still carries a double-encoding defect.
const MojibakeMarker = "Ã"

// FixMojibake repairs the fixed set of double-encoded sequences. Text without
// the defect is returned unchanged.
func FixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	return mojibakeReplacer.Replace(s)
}
