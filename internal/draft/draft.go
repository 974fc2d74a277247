// Package draft composes reply drafts from what the pipeline learned about an email.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/eval/template"
)

// Request carries everything a drafter may use
type Request struct {
	Content        string
	Classification *email.Classification
	SearchResults  []string
	TicketInfo     string
}

// Drafter produces a reply body
type Drafter interface {
	Draft(ctx context.Context, req Request) (string, error)
}

// Func adapts an ordinary function to the Drafter interface
type Func func(ctx context.Context, req Request) (string, error)

// Draft calls f(ctx, req)
func (f Func) Draft(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// DefaultTemplate is the Handlebars reply template
const DefaultTemplate = `Hello,

Thank you for reaching out about {{{default topic "your request"}}}.
{{#if (eq intent "billing")}}
A member of our billing team is reviewing your account and will confirm any correction.
{{/if}}{{#if (eq intent "complex")}}
Your message needs a closer look; a specialist will follow up with you.
{{/if}}{{#if search_results}}
Here is some information that may help:
{{#each search_results}}- {{{this}}}
{{/each}}{{/if}}{{#if ticket_info}}
We have logged this issue as {{{ticket_info}}} and our engineers are investigating.
{{/if}}{{#if (eq urgency "critical")}}
We are treating this as a critical priority.
{{/if}}{{#if content}}
Your message:
{{{quote (truncate content 300)}}}
{{/if}}
Best regards,
Support Team
`

// TemplateDrafter renders drafts with a Handlebars template
type TemplateDrafter struct {
	templateEngine *template.Engine
	template       string
}

// NewTemplateDrafter creates a drafter using DefaultTemplate
func NewTemplateDrafter() *TemplateDrafter {
	return NewTemplateDrafterWith(DefaultTemplate)
}

// NewTemplateDrafterWith creates a drafter using a custom template
func NewTemplateDrafterWith(tmpl string) *TemplateDrafter {
	return &TemplateDrafter{
		templateEngine: template.NewEngine(),
		template:       tmpl,
	}
}

// Draft renders the reply for req
func (d *TemplateDrafter) Draft(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := d.templateEngine.Render(d.template, templateData(req))
	if err != nil {
		return "", fmt.Errorf("failed to render draft: %w", err)
	}

	return strings.TrimSpace(out) + "\n", nil
}

func templateData(req Request) map[string]interface{} {
	data := map[string]interface{}{
		"content":        req.Content,
		"search_results": req.SearchResults,
		"ticket_info":    req.TicketInfo,
		"intent":         "",
		"urgency":        "",
		"topic":          "",
		"summary":        "",
	}

	if c := req.Classification; c != nil {
		data["intent"] = string(c.Intent)
		data["urgency"] = string(c.Urgency)
		data["topic"] = c.Topic
		data["summary"] = c.Summary
	}

	return data
}
