package httpserver

import (
	"embed"
	"html/template"
	"io"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// PostData holds data for rendering the auto-submitting delivery form.
type PostData struct {
	Action     string
	ParamName  string
	ParamValue string
	RelayState string
}

// ErrorData holds data for rendering the error interceptor page.
type ErrorData struct {
	Title   string
	Message string
}

// ConsentAttribute is one row of the consent page.
type ConsentAttribute struct {
	Name         string
	FriendlyName string
	Required     bool
	Values       []string
}

// ConsentData holds data for rendering the citizen consent page.
type ConsentData struct {
	Action     string
	Token      string
	Attributes []ConsentAttribute
}

// Renderer renders the HTML pages of the edge.
type Renderer struct {
	post    *template.Template
	errPage *template.Template
	consent *template.Template
}

// NewRenderer creates a renderer using the embedded templates.
func NewRenderer() (*Renderer, error) {
	post, err := template.ParseFS(embeddedTemplates, "templates/post.html")
	if err != nil {
		return nil, err
	}
	errPage, err := template.ParseFS(embeddedTemplates, "templates/error.html")
	if err != nil {
		return nil, err
	}
	consent, err := template.ParseFS(embeddedTemplates, "templates/consent.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{post: post, errPage: errPage, consent: consent}, nil
}

// RenderPost writes the auto-submitting form delivering a message.
func (r *Renderer) RenderPost(w io.Writer, data PostData) error {
	return r.post.Execute(w, data)
}

// RenderError writes the error interceptor page.
func (r *Renderer) RenderError(w io.Writer, data ErrorData) error {
	return r.errPage.Execute(w, data)
}

// RenderConsent writes the citizen consent page.
func (r *Renderer) RenderConsent(w io.Writer, data ConsentData) error {
	return r.consent.Execute(w, data)
}

// consentAttributes maps the resolved attribute list to consent rows.
// Empty attributes are skipped: there is nothing to consent to.
func consentAttributes(list *domain.PersonalAttributeList) []ConsentAttribute {
	if list == nil {
		return nil
	}
	rows := make([]ConsentAttribute, 0, list.Len())
	for _, attr := range list.All() {
		if attr.IsEmpty() {
			continue
		}
		rows = append(rows, ConsentAttribute{
			Name:         attr.Name,
			FriendlyName: attr.FriendlyName,
			Required:     attr.Required,
			Values:       attr.Values,
		})
	}
	return rows
}
