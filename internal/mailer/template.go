package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shenikar/neighbours_care/internal/models"
)

var priorityColors = map[string]string{
	models.PriorityLow:      "#48bb78",
	models.PriorityMedium:   "#ecc94b",
	models.PriorityHigh:     "#ed8936",
	models.PriorityCritical: "#e53e3e",
}

var alertTemplate = template.Must(template.New("incident_alert").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #e53e3e;">Emergency Alert</h2>
  <div style="background-color: #f7fafc; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3 style="color: #2d3748; margin-top: 0;">{{.Title}}</h3>
    <p style="color: #4a5568;">{{.Description}}</p>
    <div style="margin: 15px 0;">
      <strong>Priority:</strong> <span style="color: {{.PriorityColor}};">{{.Priority}}</span>
    </div>
    {{- if .Address}}
    <div style="margin: 15px 0;"><strong>Location:</strong> {{.Address}}</div>
    {{- end}}
    <div style="margin: 15px 0;"><strong>Reported:</strong> {{.Reported}}</div>
  </div>
  <div style="background-color: #ebf8ff; padding: 20px; border-radius: 8px;">
    <p style="margin: 0; color: #2b6cb0;"><strong>Take Action:</strong> Log into your NeighboursCare dashboard to respond to this emergency.</p>
    {{- if .DetailsURL}}
    <p style="margin-top: 10px;"><a href="{{.DetailsURL}}">View Emergency Details</a></p>
    {{- end}}
  </div>
  <div style="margin-top: 20px; font-size: 12px; color: #718096; text-align: center;">
    <p>You're receiving this because you're a registered volunteer with NeighboursCare.</p>
    <p>Please do not reply to this email.</p>
  </div>
</div>`))

type alertView struct {
	Title         string
	Description   string
	Priority      string
	PriorityColor template.CSS
	Address       string
	Reported      string
	DetailsURL    string
}

// ComposeIncidentAlert формирует тему и HTML-тело письма о новом инциденте
func ComposeIncidentAlert(alert models.Alert, frontendURL string) (string, string, error) {
	color, ok := priorityColors[alert.Priority]
	if !ok {
		color = priorityColors[models.PriorityMedium]
	}

	view := alertView{
		Title:         alert.Title,
		Description:   alert.Description,
		Priority:      strings.ToUpper(alert.Priority),
		PriorityColor: template.CSS(color),
		Address:       alert.Address,
		Reported:      alert.CreatedAt.UTC().Format(time.RFC1123),
	}
	if frontendURL != "" {
		view.DetailsURL = fmt.Sprintf("%s/incidents/%s", strings.TrimRight(frontendURL, "/"), alert.IncidentID)
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("failed to render incident alert: %w", err)
	}
	return fmt.Sprintf("New Emergency Alert: %s", alert.Title), buf.String(), nil
}
