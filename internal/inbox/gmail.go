package inbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUserID = "me"

// defaultGmailQuery selects unread mail in the inbox
const defaultGmailQuery = "is:unread in:inbox"

type gmailSvc interface {
	ListMessages(ctx context.Context, q string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessage(ctx context.Context, msgID string) (*gmail.Message, error)
}

// GmailSource fetches messages matching a Gmail search query
type GmailSource struct {
	svc        gmailSvc
	query      string
	maxResults int64
}

// NewGmailSource creates a source over svc. An empty query selects unread inbox mail.
func NewGmailSource(svc gmailSvc, query string, maxResults int64) *GmailSource {
	if query == "" {
		query = defaultGmailQuery
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &GmailSource{svc: svc, query: query, maxResults: maxResults}
}

// Fetch lists matching messages and loads each one. Messages without a text
// body are skipped.
func (g *GmailSource) Fetch(ctx context.Context) ([]Message, error) {
	list, err := g.svc.ListMessages(ctx, g.query, g.maxResults)
	if err != nil {
		return nil, fmt.Errorf("svc.ListMessages failed: %w", err)
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := g.svc.GetMessage(ctx, ref.Id)
		if err != nil {
			return nil, fmt.Errorf("get message %s failed: %w", ref.Id, err)
		}

		m := toMessage(msg)
		if err := m.Normalize(); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	return messages, nil
}

func toMessage(msg *gmail.Message) Message {
	m := Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}

	if msg.Payload == nil {
		return m
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			m.From = parseAddress(header.Value)
		case "Subject":
			m.Subject = header.Value
		}
	}

	text, html := extractMessageBodies(msg.Payload)
	m.Body = text
	if m.Body == "" {
		m.Body = html
	}

	return m
}

func extractMessageBodies(payload *gmail.MessagePart) (textBody, htmlBody string) {
	textBody, htmlBody = extractBodyFromPart(payload)

	for _, part := range payload.Parts {
		partText, partHTML := extractMessageBodies(part)
		if textBody == "" {
			textBody = partText
		}
		if htmlBody == "" {
			htmlBody = partHTML
		}
	}

	return textBody, htmlBody
}

func extractBodyFromPart(part *gmail.MessagePart) (textBody, htmlBody string) {
	if part.Body == nil || part.Body.Data == "" {
		return "", ""
	}

	switch part.MimeType {
	case "text/plain":
		return decodeBase64URL(part.Body.Data), ""
	case "text/html":
		return "", decodeBase64URL(part.Body.Data)
	default:
		return "", ""
	}
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}
	return string(decoded)
}

// GmailService is the Gmail API client used by GmailSource
type GmailService struct {
	svc *gmail.Service
}

// NewGmailService builds a read-only Gmail client from an OAuth client
// credentials file and a previously stored token file.
func NewGmailService(ctx context.Context, credentialsFile, tokenFile string) (*GmailService, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(creds, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google.ConfigFromJSON failed: %w", err)
	}

	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("os.Open failed: %w", err)
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("json.NewDecoder.Decode failed: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return &GmailService{svc: svc}, nil
}

// ListMessages lists message references matching q
func (s *GmailService) ListMessages(ctx context.Context, q string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	result, err := s.svc.Users.Messages.List(gmailUserID).
		Q(q).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("messages.List failed: %w", err)
	}
	return result, nil
}

// GetMessage loads a full message
func (s *GmailService) GetMessage(ctx context.Context, msgID string) (*gmail.Message, error) {
	msg, err := s.svc.Users.Messages.Get(gmailUserID, msgID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("messages.Get failed: %w", err)
	}
	return msg, nil
}
