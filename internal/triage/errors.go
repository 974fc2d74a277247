package triage

import "errors"

var (
	// ErrClassification means the classifier exhausted its attempts or
	// returned an invalid value. The session is escalated to review.
	ErrClassification = errors.New("classification failed")

	// ErrSearch means the knowledge-base search failed. It is recorded in
	// the processing log and never halts the session.
	ErrSearch = errors.New("search failed")

	// ErrTicket means the ticket could not be created. It is recorded in the
	// processing log and never halts the session.
	ErrTicket = errors.New("ticket creation failed")

	// ErrDraft means no reply could be drafted. The session fails at the
	// stage that needed the draft.
	ErrDraft = errors.New("draft failed")

	// ErrSend means the reply could not be delivered. The session fails at
	// send and can be retried with RetrySend.
	ErrSend = errors.New("send failed")

	// ErrSessionState means the session is unknown or not in a state that
	// allows the requested operation. The stored session is left unchanged.
	ErrSessionState = errors.New("invalid session state")
)
