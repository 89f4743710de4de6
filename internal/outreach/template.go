package outreach

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const emailSubjectTmpl = `Quick question about {{.Lead.BusinessName}}'s growth`

const emailBodyTmpl = `Hi,

I came across {{.Lead.BusinessName}} on Google Maps{{if .Lead.Rating}} and saw your {{rating .Lead.Rating}} stars from {{.Lead.ReviewsCount}} reviews{{end}}. Your customers clearly like what you do.

What I could not find was {{.Need}}. Most people look a business up online before they visit, so that gap costs you customers every week.
{{if .Sender.Pitch}}
At {{or .Sender.Company "our studio"}} {{.Sender.Pitch}}.
{{end}}
Would you be open to a short call this week?

Best regards,
{{or .Sender.Name "The team"}}{{if .Sender.Company}}
{{.Sender.Company}}{{end}}{{if .Sender.ContactPhone}}
{{.Sender.ContactPhone}}{{end}}{{if .Sender.ContactEmail}}
{{.Sender.ContactEmail}}{{end}}`

const messageTmpl = `Hi! {{or .Sender.Name "The team"}}{{if .Sender.Company}} from {{.Sender.Company}}{{end}} here.
Saw {{.Lead.BusinessName}} on Google{{if .Lead.Rating}}, {{rating .Lead.Rating}} stars{{end}}. Great reputation, but no sign of {{.Need}}.
{{if .Sender.Pitch}}We {{.Sender.Pitch}}. {{end}}Interested in a free review of your online presence? Just reply YES.`

var funcs = template.FuncMap{
	"rating": func(r float64) string { return strconv.FormatFloat(r, 'f', -1, 64) },
}

var (
	subjectTemplate = template.Must(template.New("subject").Funcs(funcs).Parse(emailSubjectTmpl))
	emailTemplate   = template.Must(template.New("email").Funcs(funcs).Parse(emailBodyTmpl))
	messageTemplate = template.Must(template.New("message").Funcs(funcs).Parse(messageTmpl))
)

type templateData struct {
	Lead   model.Lead
	Sender Sender
	Need   string
}

// TemplateGenerator renders fixed templates. It never calls out and is the
// fallback for the Claude generator.
type TemplateGenerator struct {
	sender Sender
	now    func() time.Time
}

// NewTemplate creates a TemplateGenerator for the given sender.
func NewTemplate(sender Sender) *TemplateGenerator {
	return &TemplateGenerator{sender: sender, now: time.Now}
}

// Name implements Generator.
func (g *TemplateGenerator) Name() string { return "template" }

// Email implements Generator.
func (g *TemplateGenerator) Email(_ context.Context, lead model.Lead) (model.Draft, error) {
	data := g.data(lead)
	subject, err := render(subjectTemplate, data)
	if err != nil {
		return model.Draft{}, err
	}
	body, err := render(emailTemplate, data)
	if err != nil {
		return model.Draft{}, err
	}
	return model.Draft{
		PlaceID:   lead.PlaceID,
		Channel:   model.ChannelEmail,
		Subject:   subject,
		Body:      body,
		Generator: g.Name(),
		CreatedAt: g.now().UTC(),
	}, nil
}

// Message implements Generator.
func (g *TemplateGenerator) Message(_ context.Context, lead model.Lead) (model.Draft, error) {
	body, err := render(messageTemplate, g.data(lead))
	if err != nil {
		return model.Draft{}, err
	}
	return model.Draft{
		PlaceID:   lead.PlaceID,
		Channel:   model.ChannelMessage,
		Body:      body,
		Generator: g.Name(),
		CreatedAt: g.now().UTC(),
	}, nil
}

func (g *TemplateGenerator) data(lead model.Lead) templateData {
	return templateData{Lead: lead, Sender: g.sender, Need: NeedFor(lead.Category)}
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "outreach: render %s", t.Name())
	}
	return strings.TrimSpace(buf.String()), nil
}
