// Package template provides a Handlebars template engine for rendering LLM prompts
// and reply drafts.
//
// Replies are plain text, so templates should use triple-stash ({{{value}}}) to
// avoid HTML escaping.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	data := map[string]interface{}{
//	    "topic":   "password reset",
//	    "urgency": "high",
//	}
//
//	result, err := engine.Render("About {{{topic}}} ({{urgency}} urgency)", data)
//	// Output: About password reset (high urgency)
//
// Built-in helpers:
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - join - Join list elements with separator
//   - truncate - Cut a string to n runes
//   - quote - Prefix each line with "> "
//
// Example with helpers:
//
//	{{default topic "your request"}}          # "your request" if topic is empty
//	{{#if (eq intent "bug")}}...{{/if}}       # Conditional
//	{{{quote (truncate content 300)}}}        # quoted excerpt of the original email
package template
