// Package templates holds the named notification templates. Each template
// renders a title and a message from a variables map and carries the
// update type stored with the rendered update.
package templates

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"spotter_portal_backend/platform/apperr"
)

// Update types stored on every rendered update.
const (
	TypeLeadStatus = "LEAD_STATUS"
	TypeAssignment = "ASSIGNMENT"
	TypeCommission = "COMMISSION"
	TypeGeneral    = "GENERAL"
)

// Built-in template names.
const (
	LeadAssigned  = "lead_assigned"
	LeadAccepted  = "lead_accepted"
	LeadRejected  = "lead_rejected"
	LeadCompleted = "lead_completed"
	LeadFailed    = "lead_failed"
	General       = "general"
)

// Definition is the source of one template.
type Definition struct {
	Name       string
	UpdateType string
	Title      string
	Message    string
}

// Rendered is the output of a template for one set of variables.
type Rendered struct {
	UpdateType string
	Title      string
	Message    string
}

type compiled struct {
	updateType string
	title      *template.Template
	message    *template.Template
}

// Registry resolves template names to compiled templates. It is safe for
// concurrent use once built.
type Registry struct {
	templates map[string]compiled
}

var defaultDefinitions = []Definition{
	{
		Name:       LeadAssigned,
		UpdateType: TypeAssignment,
		Title:      "New lead #{{.lead_id}} assigned to you",
		Message:    "Lead #{{.lead_id}} has been assigned to you.{{if .notes}} Notes: {{.notes}}{{end}}",
	},
	{
		Name:       LeadAccepted,
		UpdateType: TypeAssignment,
		Title:      "Lead #{{.lead_id}} accepted",
		Message:    "{{.agent_name}} accepted your lead #{{.lead_id}} and is now working on it.",
	},
	{
		Name:       LeadRejected,
		UpdateType: TypeLeadStatus,
		Title:      "Lead #{{.lead_id}} rejected",
		Message:    "{{.agent_name}} rejected lead #{{.lead_id}}.{{if .notes}} Notes: {{.notes}}{{end}}",
	},
	{
		Name:       LeadCompleted,
		UpdateType: TypeCommission,
		Title:      "Commission earned on lead #{{.lead_id}}",
		Message:    "Lead #{{.lead_id}} was sold for {{.final_price}}. Your commission is {{.spotter_commission}}.",
	},
	{
		Name:       LeadFailed,
		UpdateType: TypeLeadStatus,
		Title:      "Lead #{{.lead_id}} failed",
		Message:    "{{.agent_name}} marked lead #{{.lead_id}} as failed: {{.reason}}",
	},
	{
		Name:       General,
		UpdateType: TypeGeneral,
		Title:      "{{.title}}",
		Message:    "{{.message}}",
	},
}

// Default returns a registry holding the built-in templates.
func Default() *Registry {
	r, err := New(defaultDefinitions...)
	if err != nil {
		panic(err)
	}
	return r
}

// New compiles defs into a registry. Names must be unique.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{templates: make(map[string]compiled, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("template name is required")
		}
		if _, dup := r.templates[def.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", def.Name)
		}
		title, err := parse(def.Name+".title", def.Title)
		if err != nil {
			return nil, err
		}
		message, err := parse(def.Name+".message", def.Message)
		if err != nil {
			return nil, err
		}
		r.templates[def.Name] = compiled{updateType: def.UpdateType, title: title, message: message}
	}
	return r, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

// Names returns the registered template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template. Unknown names and variables missing
// from vars are validation errors.
func (r *Registry) Render(name string, vars map[string]interface{}) (Rendered, error) {
	t, ok := r.templates[name]
	if !ok {
		return Rendered{}, apperr.FieldValidation("template_name", fmt.Sprintf("unknown template %q", name))
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}

	title, err := execute(t.title, vars)
	if err != nil {
		return Rendered{}, apperr.FieldValidation("variables", err.Error())
	}
	message, err := execute(t.message, vars)
	if err != nil {
		return Rendered{}, apperr.FieldValidation("variables", err.Error())
	}

	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return Rendered{}, apperr.FieldValidation("variables", "rendered title and message must not be empty")
	}
	return Rendered{UpdateType: t.updateType, Title: title, Message: message}, nil
}

func execute(t *template.Template, vars map[string]interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}
