// Package templates renders the initial bodies of new issue, spec and
// guidance documents.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed files/*.tmpl
var files embed.FS

var parsed = template.Must(template.ParseFS(files, "files/*.tmpl"))

// IssueData feeds the issue template.
type IssueData struct {
	Title string
	Type  string
	Slug  string
}

// SpecData feeds the spec template.
type SpecData struct {
	Name  string
	Issue string
}

// GuidanceData feeds the guidance template.
type GuidanceData struct {
	Title string
	Issue string
}

// Renderer supplies initial document bodies.
type Renderer interface {
	IssueBody(IssueData) (string, error)
	SpecBody(SpecData) (string, error)
	GuidanceBody(GuidanceData) (string, error)
}

// Embedded renders the templates compiled into the binary.
type Embedded struct{}

// New returns the embedded renderer.
func New() *Embedded { return &Embedded{} }

func (Embedded) IssueBody(d IssueData) (string, error) { return render("issue.md.tmpl", d) }

func (Embedded) SpecBody(d SpecData) (string, error) { return render("spec.md.tmpl", d) }

func (Embedded) GuidanceBody(d GuidanceData) (string, error) {
	return render("guidance.md.tmpl", d)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := parsed.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
