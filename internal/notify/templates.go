package notify

import (
	"bytes"
	htmltemplate "html/template"
	"io"
	"log/slog"
	"strings"
	texttemplate "text/template"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Kind labels an email for logs and metrics.
type Kind string

const (
	KindVisitorConfirmation Kind = "visitor_confirmation"
	KindAgentLead           Kind = "agent_lead"
	KindAgentNotification   Kind = "agent_notification"
	KindInquirySummary      Kind = "inquiry_summary"
)

type field struct {
	Label string
	Value string
}

// body is the layout shared by every email.
type body struct {
	Heading string
	Intro   string
	Fields  []field
	Notes   string
	Closing string
}

var textLayout = texttemplate.Must(texttemplate.New("text").Parse(
	`{{.Heading}}

{{.Intro}}
{{range .Fields}}
{{.Label}}: {{.Value}}{{end}}
{{if .Notes}}
{{.Notes}}
{{end}}
{{.Closing}}
`))

var htmlLayout = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<h2>{{.Heading}}</h2>
<p>{{.Intro}}</p>
<table>{{range .Fields}}
<tr><td><strong>{{.Label}}</strong></td><td>{{.Value}}</td></tr>{{end}}
</table>
{{if .Notes}}<pre style="white-space:pre-wrap">{{.Notes}}</pre>{{end}}
<p>{{.Closing}}</p>
</body></html>
`))

func render(to, subject string, b body) models.Email {
	fields := b.Fields[:0:0]
	for _, f := range b.Fields {
		if strings.TrimSpace(f.Value) != "" {
			fields = append(fields, f)
		}
	}
	b.Fields = fields

	text, err := execute(textLayout, b)
	if err != nil {
		slog.Error("email text layout failed", "subject", subject, "error", err)
		text = plainText(b)
	}
	html, err := execute(htmlLayout, b)
	if err != nil {
		slog.Error("email html layout failed, sending text only", "subject", subject, "error", err)
		html = ""
	}
	return models.Email{To: to, Subject: subject, Text: text, HTML: html}
}

type layout interface {
	Execute(w io.Writer, data any) error
}

func execute(l layout, b body) (string, error) {
	var buf bytes.Buffer
	if err := l.Execute(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// plainText is the template-free rendering used when the text layout fails.
func plainText(b body) string {
	var sb strings.Builder
	sb.WriteString(b.Heading + "\n\n" + b.Intro + "\n\n")
	for _, f := range b.Fields {
		sb.WriteString(f.Label + ": " + f.Value + "\n")
	}
	if b.Notes != "" {
		sb.WriteString("\n" + b.Notes + "\n")
	}
	sb.WriteString("\n" + b.Closing + "\n")
	return sb.String()
}

func agentName(t *models.Tenant) string {
	switch {
	case t.AgentName != "":
		return t.AgentName
	case t.Name != "":
		return t.Name
	}
	return t.ID
}

func propertyFields(p *models.Property) []field {
	if p == nil {
		return nil
	}
	return []field{
		{"Property", p.Title},
		{"Property ID", p.ID},
		{"Location", p.Location},
		{"Price", p.Price},
		{"Link", p.URL},
	}
}

func visitorFields(v models.Visitor) []field {
	return []field{
		{"Name", v.Name},
		{"Email", v.Email},
		{"Phone", v.Phone},
	}
}

// VisitorConfirmation confirms a viewing request to the visitor, in Indonesian
// or English.
func VisitorConfirmation(t *models.Tenant, v models.Visitor, p *models.Property, lang string) models.Email {
	if lang == "en" {
		b := body{
			Heading: "Viewing request received",
			Intro:   "Hi " + v.Name + ", thank you for your interest. " + agentName(t) + " will contact you to confirm the schedule.",
			Fields: append(propertyFields(p),
				field{"Date", v.PreferredDate},
				field{"Time", v.PreferredTime},
			),
			Closing: "Best regards, " + agentName(t),
		}
		return render(v.Email, "Viewing request: "+titleOr(p, v.PropertyID), b)
	}
	b := body{
		Heading: "Permintaan survei diterima",
		Intro:   "Halo " + v.Name + ", terima kasih atas minat Anda. " + agentName(t) + " akan menghubungi Anda untuk konfirmasi jadwal.",
		Fields: append(localized(propertyFields(p)),
			field{"Tanggal", v.PreferredDate},
			field{"Jam", v.PreferredTime},
		),
		Closing: "Salam, " + agentName(t),
	}
	return render(v.Email, "Permintaan survei: "+titleOr(p, v.PropertyID), b)
}

var indonesianLabels = map[string]string{
	"Property":    "Properti",
	"Property ID": "ID Properti",
	"Location":    "Lokasi",
	"Price":       "Harga",
	"Link":        "Tautan",
}

func localized(fields []field) []field {
	out := make([]field, len(fields))
	for i, f := range fields {
		if l, ok := indonesianLabels[f.Label]; ok {
			f.Label = l
		}
		out[i] = f
	}
	return out
}

func titleOr(p *models.Property, fallback string) string {
	if p != nil && p.Title != "" {
		return p.Title
	}
	return fallback
}

// AgentLead tells the agent a visitor asked to view a property.
func AgentLead(t *models.Tenant, v models.Visitor, p *models.Property) models.Email {
	fields := visitorFields(v)
	fields = append(fields, propertyFields(p)...)
	fields = append(fields,
		field{"Preferred date", v.PreferredDate},
		field{"Preferred time", v.PreferredTime},
	)
	b := body{
		Heading: "New viewing request",
		Intro:   "A visitor on " + t.ID + " asked to schedule a viewing.",
		Fields:  fields,
		Notes:   v.Message,
		Closing: "Please contact the visitor to confirm.",
	}
	return render(t.AgentEmail, "New viewing request from "+v.Name, b)
}

// AgentNotification tells the agent a visitor left contact details.
func AgentNotification(t *models.Tenant, v models.Visitor) models.Email {
	b := body{
		Heading: "New visitor contact",
		Intro:   "A visitor on " + t.ID + " shared their contact details with the assistant.",
		Fields:  visitorFields(v),
		Notes:   v.Message,
		Closing: "Reach out while the lead is warm.",
	}
	return render(t.AgentEmail, "New lead: "+v.Name, b)
}

// InquirySummary forwards a visitor's inquiry and the conversation excerpt to the agent.
func InquirySummary(t *models.Tenant, v models.Visitor, summary, history string) models.Email {
	b := body{
		Heading: "Visitor inquiry",
		Intro:   summary,
		Fields:  visitorFields(v),
		Notes:   history,
		Closing: "Sent by the " + t.ID + " property assistant.",
	}
	return render(t.AgentEmail, "Inquiry from "+v.Name, b)
}
