package inbox

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func TestNormalize(t *testing.T) {
	m := Message{From: " a@example.com ", Body: "hi"}
	require.NoError(t, m.Normalize())
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, m.ID, m.ThreadID)
	assert.Equal(t, "a@example.com", m.From)

	m = Message{ID: "m1", ThreadID: "t1", From: "a@example.com", Body: "hi"}
	require.NoError(t, m.Normalize())
	assert.Equal(t, "t1", m.ThreadID)

	assert.ErrorIs(t, (&Message{From: "a@example.com", Body: "  "}).Normalize(), ErrEmptyMessage)
	assert.ErrorIs(t, (&Message{Body: "x"}).Normalize(), ErrEmptyMessage)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.yaml")
	content := `messages:
  - id: email-1
    from: customer@example.com
    subject: Double charge
    body: I was charged twice!
  - from: user@example.com
    body: How do I reset my password?
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	msgs, err := NewFileSource(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "email-1", msgs[0].ID)
	assert.Equal(t, "email-1", msgs[0].ThreadID)
	assert.Equal(t, "Double charge", msgs[0].Subject)
	assert.NotEmpty(t, msgs[1].ID)
}

func TestFileSource_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages:\n  - body: no sender\n"), 0o600))

	_, err := NewFileSource(path).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestParseRaw_PlainText(t *testing.T) {
	raw := "From: Jane Doe <jane@example.com>\r\n" +
		"To: support@example.com\r\n" +
		"Subject: Password help\r\n" +
		"Message-ID: <abc123@example.com>\r\n" +
		"\r\n" +
		"How do I reset my password?\r\n"

	msg, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "abc123@example.com", msg.ID)
	assert.Equal(t, "abc123@example.com", msg.ThreadID)
	assert.Equal(t, "jane@example.com", msg.From)
	assert.Equal(t, "Password help", msg.Subject)
	assert.Equal(t, "How do I reset my password?", msg.Body)
}

func TestParseRaw_Multipart(t *testing.T) {
	raw := "From: bob@example.com\r\n" +
		"Subject: =?UTF-8?Q?Export_cr=C3=A4sh?=\r\n" +
		"References: <root@example.com> <prev@example.com>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>Export crashes</p>\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		base64.StdEncoding.EncodeToString([]byte("Export crashes")) + "\r\n" +
		"--b1--\r\n"

	msg, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", msg.From)
	assert.Equal(t, "Export cräsh", msg.Subject)
	assert.Equal(t, "root@example.com", msg.ThreadID)
	assert.Equal(t, "Export crashes", msg.Body)
	assert.NotEmpty(t, msg.ID)
}

func TestParseRaw_Invalid(t *testing.T) {
	_, err := ParseRaw([]byte("not an email"))
	assert.Error(t, err)
}

type gmailSvcMock struct {
	ListMessagesFunc func(ctx context.Context, q string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessageFunc   func(ctx context.Context, msgID string) (*gmail.Message, error)
}

func (m *gmailSvcMock) ListMessages(ctx context.Context, q string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	return m.ListMessagesFunc(ctx, q, maxResults)
}

func (m *gmailSvcMock) GetMessage(ctx context.Context, msgID string) (*gmail.Message, error) {
	return m.GetMessageFunc(ctx, msgID)
}

func encodeURL(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestGmailSource(t *testing.T) {
	var gotQuery string
	svc := &gmailSvcMock{
		ListMessagesFunc: func(_ context.Context, q string, _ int64) (*gmail.ListMessagesResponse, error) {
			gotQuery = q
			return &gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "m-1"}, {Id: "m-2"}}}, nil
		},
		GetMessageFunc: func(_ context.Context, msgID string) (*gmail.Message, error) {
			if msgID == "m-2" {
				// no body, skipped
				return &gmail.Message{Id: msgID, Payload: &gmail.MessagePart{}}, nil
			}
			return &gmail.Message{
				Id:       msgID,
				ThreadId: "t-" + msgID,
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Headers: []*gmail.MessagePartHeader{
						{Name: "From", Value: "Test User <test@test.com>"},
						{Name: "Subject", Value: "Broken export"},
					},
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encodeURL("<b>html</b>")}},
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodeURL("Export is broken")}},
					},
				},
			}, nil
		},
	}

	msgs, err := NewGmailSource(svc, "", 0).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultGmailQuery, gotQuery)
	require.Len(t, msgs, 1)
	assert.Equal(t, Message{
		ID:       "m-1",
		ThreadID: "t-m-1",
		From:     "test@test.com",
		Subject:  "Broken export",
		Body:     "Export is broken",
	}, msgs[0])
}

func TestGmailSource_ListError(t *testing.T) {
	svc := &gmailSvcMock{
		ListMessagesFunc: func(context.Context, string, int64) (*gmail.ListMessagesResponse, error) {
			return nil, errors.New("quota")
		},
	}
	_, err := NewGmailSource(svc, "label:support", 5).Fetch(context.Background())
	assert.ErrorContains(t, err, "quota")
}
