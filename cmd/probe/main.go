// Command probe inspects one feedback export without normalizing it.
//
// It reads a bounded prefix of the file (default 64KB), detects the text
// encoding and the delimiter/quote convention, and resolves every header
// against the canonical schema. The result is printed as JSON so it can be
// diffed or piped into other tools:
//
//	probe [-sample-bytes N] [-pretty=false] file.csv
//
// Exit codes: 0 on success, 1 when the file cannot be probed, 2 on usage
// errors.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"feedbacketl/internal/header"
	"feedbacketl/internal/probe"
)

// output is the JSON document printed for one file.
type output struct {
	Path     string         `json:"path"`
	Size     int64          `json:"size_bytes"`
	Encoding encodingReport `json:"encoding"`
	Dialect  dialectReport  `json:"dialect"`
	Columns  []columnReport `json:"columns"`
	// Missing lists canonical columns no header resolved to.
	Missing    []string `json:"missing"`
	Duplicates []string `json:"duplicates,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type encodingReport struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Fallback   bool   `json:"fallback"`
	Warning    string `json:"warning,omitempty"`
}

type dialectReport struct {
	Delimiter   string  `json:"delimiter"`
	Quote       string  `json:"quote"`
	Fields      int     `json:"fields"`
	Consistency float64 `json:"consistency"`
	Guessed     bool    `json:"guessed"`
}

type columnReport struct {
	Index     int      `json:"index"`
	Raw       string   `json:"raw"`
	Cleaned   string   `json:"cleaned"`
	Canonical string   `json:"canonical,omitempty"`
	Rule      string   `json:"rule,omitempty"`
	Rewrites  []string `json:"rewrites,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sampleBytes := fs.Int("sample-bytes", probe.DefaultSampleBytes, "bytes sampled from the start of the file")
	pretty := fs.Bool("pretty", true, "pretty-print JSON output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: probe [flags] file.csv")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "missing file argument")
		fs.Usage()
		return 2
	}

	res, err := probe.Probe(fs.Arg(0), probe.Options{SampleBytes: *sampleBytes})
	if err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(buildOutput(res)); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}

func buildOutput(res probe.Result) output {
	m := header.Canonicalize(res.Header)

	out := output{
		Path: res.Path,
		Size: res.Size,
		Encoding: encodingReport{
			Name:       res.Encoding.Name,
			Confidence: res.Encoding.Confidence,
			Fallback:   res.Encoding.Fallback,
			Warning:    res.Encoding.Warning,
		},
		Dialect: dialectReport{
			Delimiter:   res.Dialect.DelimiterName(),
			Quote:       string(res.Dialect.Quote),
			Fields:      res.Dialect.Fields,
			Consistency: res.Dialect.Consistency,
			Guessed:     res.Dialect.Guessed,
		},
		Columns:  make([]columnReport, 0, len(m.Decisions)),
		Missing:  m.Missing(),
		Warnings: res.Warnings,
	}
	if out.Missing == nil {
		out.Missing = []string{}
	}
	for i, d := range m.Decisions {
		out.Columns = append(out.Columns, columnReport{
			Index:     i,
			Raw:       d.Raw,
			Cleaned:   d.Cleaned,
			Canonical: d.Canonical,
			Rule:      d.Rule,
			Rewrites:  d.Rewrites,
		})
	}
	for _, d := range m.Duplicates {
		out.Duplicates = append(out.Duplicates, d.String())
	}
	return out
}
