// Package email defines the triage data model: the record that accumulates
// while an inbound email moves through the pipeline, its classification, and
// the processing stages.
//
// Intent and urgency values are closed sets. Parsing anything outside them
// fails with ErrInvalidIntent or ErrInvalidUrgency instead of defaulting:
//
//	intent, err := email.ParseIntent("Billing")
//	if err != nil {
//	    return err
//	}
//	c := email.Classification{Intent: intent, Urgency: email.UrgencyHigh}
//	if err := c.Validate(); err != nil {
//	    return err
//	}
package email
