// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/failure"
)

// Section placeholders recognized in report templates.
const (
	PlaceholderExecutiveSummary = "{{EXECUTIVE_SUMMARY}}"
	PlaceholderMethods          = "{{METHODS}}"
	PlaceholderResults          = "{{RESULTS}}"
	PlaceholderModelDraft       = "{{MODEL_DRAFT}}"
	PlaceholderAppendix         = "{{APPENDIX}}"
)

// placeholders lists the sections in document order.
var placeholders = []string{
	PlaceholderExecutiveSummary,
	PlaceholderMethods,
	PlaceholderResults,
	PlaceholderModelDraft,
	PlaceholderAppendix,
}

// defaultLayout is used when no template is configured or the template is empty.
const defaultLayout = `# Research Synthesis: Model Draft (Informational Only)

## Executive summary

{{EXECUTIVE_SUMMARY}}

## Methods

{{METHODS}}

## Results

{{RESULTS}}

## Model-draft synthesis

{{MODEL_DRAFT}}

## Appendix

{{APPENDIX}}`

// Template is a Markdown document with section placeholders.
type Template struct {
	// Path is where the template was loaded from; empty for the built-in layout.
	Path string
	Text string
}

// DefaultTemplate returns the built-in layout.
func DefaultTemplate() Template {
	return Template{Text: defaultLayout}
}

// LoadTemplate reads a template file. An empty path selects the built-in
// layout; a missing file is a configuration error.
func LoadTemplate(path string) (Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Template{}, failure.Configf("report template %s does not exist", path)
		}
		return Template{}, fmt.Errorf("%w: reading report template %s: %v", failure.ErrConfiguration, path, err)
	}
	return Template{Path: path, Text: string(data)}, nil
}

// fill substitutes section bodies into the template. When the template
// lacks any placeholder, every section is appended after its text.
func (t Template) fill(sections map[string]string) string {
	text := t.Text
	if strings.TrimSpace(text) == "" {
		text = defaultLayout
	}

	pairs := make([]string, 0, 2*len(placeholders))
	missing := false
	for _, p := range placeholders {
		pairs = append(pairs, p, sections[p])
		if !strings.Contains(text, p) {
			missing = true
		}
	}
	// One pass over the template, so placeholders inside section bodies stay literal.
	out := strings.NewReplacer(pairs...).Replace(text)
	if !missing {
		return out
	}

	bodies := make([]string, len(placeholders))
	for i, p := range placeholders {
		bodies[i] = sections[p]
	}
	return strings.TrimRight(out, " \t\r\n") + "\n\n" + strings.Join(bodies, "\n\n")
}
