// Package router decides the next processing stage of an email.
//
// Routing is deterministic: each stage owns an ordered list of CEL rules and a
// fallback target. Rules are evaluated in order and the first match wins, so
// precedence is exactly the order of the table.
//
//	classify:       billing → review, critical → review,
//	                question|feature → search, bug → ticket, else draft
//	search, ticket: draft
//	draft:          high|critical → review, complex → review, else send
//	review:         rejected → done, else send (RouteReview)
//
// Example:
//
//	r, err := router.NewRouter(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := r.Route(ctx, record.Classification, email.StageClassify)
//	// result.Next == email.StageReview for any billing email
//
// An intent or urgency outside the fixed sets fails with
// ErrInvalidClassification; nothing defaults silently.
package router
