package mail

import (
	"fmt"
	"strings"
	"sync"
)

// Template defines a reusable mail template. Placeholders use {{key}} syntax.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine manages mail templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "password-reset",
			Subject: "Recuperación de contraseña",
			Body: "Hola {{name}},\n\n" +
				"Recibimos una solicitud para restablecer tu contraseña. " +
				"Usa el siguiente enlace para crear una nueva contraseña:\n\n" +
				"{{reset_link}}\n\n" +
				"El enlace expira en {{expires_minutes}} minutos. " +
				"Si no solicitaste este cambio, ignora este mensaje.",
		},
		{
			ID:      "support-ticket-created",
			Subject: "Ticket de soporte {{folio}} recibido",
			Body: "Hola {{name}},\n\n" +
				"Tu ticket de soporte fue registrado con el folio {{folio}}.\n" +
				"Asunto: {{subject}}\n" +
				"Prioridad: {{priority}}\n\n" +
				"Te contactaremos en cuanto sea atendido.",
		},
		{
			ID:      "support-ticket-notify",
			Subject: "Nuevo ticket de soporte {{folio}}",
			Body: "Se registró un nuevo ticket de soporte.\n\n" +
				"Folio: {{folio}}\n" +
				"Solicitante: {{name}} ({{email}})\n" +
				"Asunto: {{subject}}\n" +
				"Prioridad: {{priority}}\n\n" +
				"{{description}}",
		},
		{
			ID:      "appointment-reminder",
			Subject: "Recordatorio de cita",
			Body: "Hola {{patient_name}},\n\n" +
				"Te recordamos tu cita el {{date}} a las {{time}} con {{doctor_name}}.\n" +
				"Si no puedes asistir, comunícate con la clínica para reprogramar.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// Register adds or replaces a template in the engine.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
