// Command report summarizes a unified feedback table as a markdown document:
// score statistics, comment classification, suggested improvements and
// responses per professional.
//
//	report [-out informe.md] [validacion_unificado.csv]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"feedbacketl/internal/config"
	"feedbacketl/internal/pipeline"
	"feedbacketl/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "write markdown here instead of stdout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: report [-out file.md] [unified.csv]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}
	in := config.DefaultUnified
	if fs.NArg() == 1 {
		in = fs.Arg(0)
	}

	t, res, err := pipeline.LoadFile(in, pipeline.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "report: %v\n", err)
		return 1
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "warning: %s: %s\n", in, w)
	}

	s := report.Summarize(t)
	if *out == "" {
		if err := report.WriteMarkdown(stdout, s); err != nil {
			fmt.Fprintf(stderr, "report: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeFile(*out, s); err != nil {
		fmt.Fprintf(stderr, "report: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "report: %d responses -> %s\n", s.Rows, *out)
	return 0
}

func writeFile(path string, s report.Summary) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.WriteMarkdown(f, s)
}
