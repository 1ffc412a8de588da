package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/porticus-lab/go-page-capture/internal/pdfcheck"
)

type pageReport struct {
	Page   int                  `json:"page"`
	Width  float64              `json:"width"`
	Height float64              `json:"height"`
	Images []pdfcheck.Placement `json:"images"`
}

type docReport struct {
	File    string       `json:"file"`
	Version string       `json:"version"`
	Title   string       `json:"title,omitempty"`
	Creator string       `json:"creator,omitempty"`
	Pages   int          `json:"pages"`
	Detail  []pageReport `json:"detail"`
}

// runInspect implements the "inspect" command.
func runInspect(args []string, stdout io.Writer) error {
	var pageRange, format string
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&pageRange, "pages", "p", "", `page range, e.g. "1", "1-5", "1,3,5" (default: all)`)
	fs.StringVarP(&format, "format", "f", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect takes exactly one file", errUsage)
	}
	input := fs.Arg(0)

	doc, err := pdfcheck.Open(input)
	if err != nil {
		return fmt.Errorf("opening %s: %w", input, err)
	}
	pages, err := doc.Pages()
	if err != nil {
		return fmt.Errorf("reading pages: %w", err)
	}
	indices, err := parsePageRange(pageRange, len(pages))
	if err != nil {
		return fmt.Errorf("%w: invalid page range %q: %v", errUsage, pageRange, err)
	}

	rep := docReport{
		File:    input,
		Version: doc.Version(),
		Title:   doc.InfoString("Title"),
		Creator: doc.InfoString("Creator"),
		Pages:   len(pages),
	}
	for _, i := range indices {
		p := pages[i]
		rep.Detail = append(rep.Detail, pageReport{Page: i + 1, Width: p.Width, Height: p.Height, Images: p.Images})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "text":
		writeReport(stdout, rep)
		return nil
	}
	return fmt.Errorf("%w: unknown format %q", errUsage, format)
}

func writeReport(w io.Writer, rep docReport) {
	fmt.Fprintf(w, "File:    %s\n", rep.File)
	fmt.Fprintf(w, "Version: PDF-%s\n", rep.Version)
	if rep.Title != "" {
		fmt.Fprintf(w, "Title:   %s\n", rep.Title)
	}
	fmt.Fprintf(w, "Pages:   %d\n", rep.Pages)
	for _, p := range rep.Detail {
		fmt.Fprintf(w, "\nPage %d: %.2f x %.2f pt\n", p.Page, p.Width, p.Height)
		for _, im := range p.Images {
			fmt.Fprintf(w, "  /%s at (%.2f, %.2f) size %.2f x %.2f\n", im.Name, im.X, im.Y, im.W, im.H)
		}
	}
}

// parsePageRange converts a page range to 0-based indices.
// Supported forms: "" (all), "3", "1-5" and "1,3,5".
func parsePageRange(spec string, total int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	var out []int
	seen := make(map[int]bool)
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p-1)
		}
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q", lo)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid page number %q", hi)
			}
		}
		if start < 1 || end > total || start > end {
			return nil, fmt.Errorf("pages %s out of bounds (1-%d)", part, total)
		}
		for p := start; p <= end; p++ {
			add(p)
		}
	}
	return out, nil
}
