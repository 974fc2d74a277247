package inbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// ParseRaw parses a raw RFC 5322 message. The text/plain body is preferred;
// an HTML-only message keeps its HTML as the body. Attachments are ignored.
func ParseRaw(raw []byte) (*Message, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &Message{
		ID:      strings.Trim(msg.Header.Get("Message-Id"), "<> "),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		From:    parseAddress(msg.Header.Get("From")),
	}

	if refs := strings.Fields(msg.Header.Get("References")); len(refs) > 0 {
		result.ThreadID = strings.Trim(refs[0], "<>")
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	var text, html string
	mediaType, params, err := mime.ParseMediaType(contentType)
	switch {
	case err != nil:
		// If content type is unparseable, treat as plain text
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read message body: %w", readErr)
		}
		text = string(body)
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, &text, &html); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
	default:
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return nil, fmt.Errorf("failed to read message body: %w", err)
		}
		if mediaType == "text/html" {
			html = string(body)
		} else {
			text = string(body)
		}
	}

	result.Body = strings.TrimSpace(text)
	if result.Body == "" {
		result.Body = strings.TrimSpace(html)
	}

	if err := result.Normalize(); err != nil {
		return nil, err
	}

	return result, nil
}

// parseMultipart walks a multipart body, keeping the first text/plain and
// text/html parts.
func parseMultipart(body io.Reader, boundary string, text, html *string) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		if strings.HasPrefix(part.Header.Get("Content-Disposition"), "attachment") {
			continue
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if nested := params["boundary"]; nested != "" {
				if err := parseMultipart(part, nested, text, html); err != nil {
					return err
				}
			}
			continue
		}

		content, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			continue
		}

		switch mediaType {
		case "text/plain":
			if *text == "" {
				*text = string(content)
			}
		case "text/html":
			if *html == "" {
				*html = string(content)
			}
		}
	}
}

// decodeBody reads content, undoing base64 transfer encoding. Quoted-printable
// parts are decoded by the multipart reader already.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(encoding)) != "base64" {
		return raw, nil
	}

	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}
	return decoded, nil
}

// parseAddress returns the bare address of a From header value
func parseAddress(raw string) string {
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return addr.Address
}

func decodeHeader(raw string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}
