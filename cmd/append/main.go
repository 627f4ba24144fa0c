// Command append validates one survey response and appends it to a feedback
// table in canonical form.
//
// The response is a JSON object keyed by column name (aliases such as
// "satisfaccion_diseno" or "profesion" are accepted), given with -json or on
// stdin:
//
//	echo '{"nombre_profesional":"Ana","utilidad":9,...}' | append -file validacion_unificado.csv
//
// A rejected response prints one line per invalid field and exits 1 without
// touching the file.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"feedbacketl/internal/config"
	"feedbacketl/internal/feedback"
	"feedbacketl/internal/logger"
	"feedbacketl/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("append", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", config.DefaultUnified, "table to append to (created when missing)")
	raw := fs.String("json", "", "response as a JSON object (default: read stdin)")
	level := fs.String("log-level", "warn", "debug|info|warn|error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: append [-file table.csv] [-json '{...}']")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 || strings.TrimSpace(*file) == "" {
		fs.Usage()
		return 2
	}
	if _, err := logger.ParseLevel(*level); err != nil {
		fmt.Fprintf(stderr, "-log-level: %v\n", err)
		return 2
	}

	var src io.Reader = stdin
	if *raw != "" {
		src = strings.NewReader(*raw)
	}
	fields, err := decodeFields(src)
	if err != nil {
		fmt.Fprintf(stderr, "append: %v\n", err)
		return 2
	}

	rec, err := pipeline.AppendRecord(*file, fields, pipeline.Options{Logger: logger.New(*level, stderr)})
	if err != nil {
		var ve *feedback.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintln(stderr, "record rejected:")
			for _, fe := range ve.Fields {
				fmt.Fprintf(stderr, "  - %s\n", fe.Error())
			}
			return 1
		}
		fmt.Fprintf(stderr, "append: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "appended response from %s to %s\n", rec.Get(feedback.NombreProfesional), *file)
	return 0
}

// decodeFields reads one JSON object and renders every value as the text a
// CSV cell would hold. Numbers keep their literal form; null becomes empty.
func decodeFields(r io.Reader) (map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("empty input: expected a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if obj == nil {
		return nil, errors.New("expected a JSON object")
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case json.Number:
			out[k] = x.String()
		case bool:
			if x {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		default:
			return nil, fmt.Errorf("field %q: unsupported JSON value %T", k, v)
		}
	}
	return out, nil
}
