// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"strconv"
	"strings"
	"text/template"
)

var sectionFuncs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
	"joinInts": func(ns []int) string {
		parts := make([]string, len(ns))
		for i, n := range ns {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ", ")
	},
}

func section(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(sectionFuncs).Parse(text))
}

var executiveSummaryTmpl = section("executive", `Report generated: {{.GeneratedAt}} (UTC)

{{.Disclaimer}}

Number of evidence items processed: {{.ItemCount}}
{{- if .Top}}

Top interventions / topics (automatically extracted):
{{- range .Top}}
- {{.Label}}: {{.Count}} source(s)
{{- end}}
{{- end}}`)

var methodsTmpl = section("methods", `Data sources:
- ClinicalTrials.gov study records (if collected)
- PubMed abstracts (if collected)
{{- if .Queries}}

Queries:
{{- range .Queries}}
- {{.}}
{{- end}}
{{- end}}

Processing:
- Records were normalized into a structured evidence schema by heuristic field matching.
- Interventions and topics were taken from explicit fields, a known keyword list, and short title or snippet phrases.
- Strength of evidence is a keyword heuristic over study status and text (randomized > cohort/observational > case report > unspecified).
- No clinical recommendations are produced.`)

var resultsTmpl = section("results", `Total entries: {{.ItemCount}}
{{- if .Top}}

Top interventions (summary):
{{- range .Top}}
- **{{.Label}}**: {{.Count}} evidence item(s) ({{join .Identifiers ", "}})
{{- end}}
{{- end}}

Sample evidence (first {{len .Sample}} items):
{{- range $i, $e := .Sample}}

{{inc $i}}. {{if $e.Title}}{{$e.Title}}{{else}}<no title>{{end}}
   - provenance: {{$e.Source}}{{if $e.Identifier}} {{$e.Identifier}}{{end}}
   - strength: {{$e.StrengthRank}}
{{- if $e.Snippet}}
   - snippet: {{$e.Snippet}}
{{- end}}
{{- end}}`)

var modelDraftTmpl = section("draft", `{{if .Model}}Model-draft synthesis (automated and unreviewed, model: {{.Model}}){{else}}Model-draft synthesis (deterministic fallback){{end}}

{{.Text}}`)

var appendixTmpl = section("appendix", `Provenance summary:
{{- range .Provenance}}
- {{.Source}}: {{.Count}}
{{- end}}

Skipped records: {{.Skipped}}
{{- if .Duplicates}}

Duplicate identifiers (not merged):
{{- range .Duplicates}}
- {{.Identifier}}: records {{joinInts .RecordIndexes}}
{{- end}}
{{- end}}

Full structured evidence is available in the JSON used to render this report.`)
