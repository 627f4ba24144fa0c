package pipeline

import (
	"errors"
	"os"
	"sort"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/header"
	"feedbacketl/internal/probe"
	"feedbacketl/internal/sanitize"
)

// ResolveFields maps submitted keys onto canonical names with the header
// rules, so a form posting "satisfaccion_diseno" or "profesion" lands in the
// right column. Keys are visited in sorted order and the first key that
// resolves to a column wins. Unresolved keys are returned sorted.
func ResolveFields(fields map[string]string) (canon map[string]string, ignored []string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canon = make(map[string]string, len(fields))
	for _, k := range keys {
		d := header.Resolve(k, header.Rules)
		if d.Dropped() {
			ignored = append(ignored, k)
			continue
		}
		if _, taken := canon[d.Canonical]; taken {
			ignored = append(ignored, k)
			continue
		}
		canon[d.Canonical] = fields[k]
	}
	return canon, ignored
}

// AppendRecord validates one submitted record and appends it to the table at
// path. An invalid record is returned as a *feedback.ValidationError and
// nothing is written. An existing file is loaded through the same stages as
// Run, so the rewritten file is always in canonical form.
func AppendRecord(path string, fields map[string]string, opt Options) (feedback.Record, error) {
	opt = opt.withDefaults()

	canon, ignored := ResolveFields(fields)
	if err := feedback.Check(canon); err != nil {
		opt.Logger.Warn("record rejected", "path", path, "err", err)
		return feedback.Record{}, err
	}
	rec, _ := feedback.RecordFromMap(canon)
	rec, cut := sanitize.Record(rec)

	var t feedback.Table
	if _, err := os.Stat(path); err == nil {
		existing, _, err := LoadFile(path, opt)
		switch {
		case errors.Is(err, probe.ErrEmptyFile):
		case err != nil:
			return feedback.Record{}, err
		default:
			t = existing
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return feedback.Record{}, err
	}

	t.Rows = append(t.Rows, rec)
	if err := WriteFile(path, t); err != nil {
		return feedback.Record{}, err
	}
	opt.Logger.Info("record appended",
		"path", path,
		"rows", t.Len(),
		"ignored", ignored,
		"truncated", cut,
	)
	return rec, nil
}
