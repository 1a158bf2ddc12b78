// Command blwcheck decodes a BLW file offline, prints the validation
// report, and optionally writes the decoded document as YAML or the
// re-encoded canonical BLW text. Useful for checking a scoring file
// before uploading it, and for diffing what a round trip changes.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"regattalog/api/internal/blw"
)

const (
	inputFlag     = "input"
	outputFlag    = "output"
	formatFlag    = "format"
	strictFlag    = "strict"
	stdoutCLIName = "-"
)

var build string
var semanticVersion = "v0.1.0-dev" + build

func cliHandle(inputLocation, outputLocation, format string, strict bool) error {
	var reader io.ReadCloser = os.Stdin
	if inputLocation != stdoutCLIName {
		f, err := os.Open(inputLocation)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	doc, err := blw.Decode(string(raw))
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	report := blw.Validate(doc)
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Fprintf(os.Stderr, "%d competitors, %d races, %d results\n",
		len(doc.Competitors), len(doc.Races), len(doc.Results))

	if strict && (len(report.Errors) > 0 || len(report.Warnings) > 0) {
		os.Exit(2)
	}

	if outputLocation == "" {
		return nil
	}
	var writer io.Writer = os.Stdout
	if outputLocation != stdoutCLIName {
		f, err := os.OpenFile(outputLocation, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch format {
	case "yaml":
		yamlEncoder := yaml.NewEncoder(writer)
		yamlEncoder.SetIndent(2)
		if err := yamlEncoder.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return yamlEncoder.Close()
	case "blw":
		if _, err := io.WriteString(writer, blw.Encode(doc)); err != nil {
			return fmt.Errorf("write blw: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want yaml or blw)", format)
	}
}

func main() {
	var inputLocation string
	var outputLocation string
	var format string
	var strict bool
	app := &cli.App{
		Name:    "blwcheck",
		Usage:   "Decode and validate a BLW regatta scoring file",
		Version: semanticVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        inputFlag,
				Aliases:     []string{"i"},
				Usage:       "Path to the BLW file to check, or \"-\" for stdin",
				Destination: &inputLocation,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        outputFlag,
				Aliases:     []string{"o"},
				Usage:       "Where to write the decoded document. Can be a file path or \"-\" (for stdout).",
				Destination: &outputLocation,
			},
			&cli.StringFlag{
				Name:        formatFlag,
				Aliases:     []string{"f"},
				Usage:       "Output format: yaml or blw (canonical re-encode)",
				Value:       "yaml",
				Destination: &format,
			},
			&cli.BoolFlag{
				Name:        strictFlag,
				Usage:       "Exit non-zero when the report has warnings",
				Destination: &strict,
			},
		},
		Action: func(cCtx *cli.Context) error {
			return cliHandle(inputLocation, outputLocation, format, strict)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
