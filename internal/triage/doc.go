// Package triage runs the per-email workflow: read, classify, then search or
// ticket as routed, draft, optional human review, and send.
//
// Each stage handler updates the session record and asks the router for the
// next stage. The session is checkpointed to the store after every stage.
// Review is the only suspension point: Process returns with the session
// paused and a later Resume call, carrying the reviewer's decision, continues
// it. Resumes are serialized by an atomic claim on the stored session so a
// second resume of the same session fails with ErrSessionState.
//
// Failures follow a fixed policy. Search and ticket errors are noted in the
// record's log and processing continues. A classification failure escalates
// the email to review. Draft and send failures stop the session with status
// failed; a failed send can be retried with RetrySend.
package triage
