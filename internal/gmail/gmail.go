// Package gmail wraps the Gmail API calls fuc makes: paginated message
// listing by label, full message fetches, and plain-text body extraction.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gm "google.golang.org/api/gmail/v1"
)

// Quota cost units per call, from the Gmail API usage table. Every call
// is charged against the shared rate limiter before it goes out.
const (
	CostMessageGet  = 5
	CostMessageList = 5
	CostLabelsList  = 1
)

// Client performs Gmail operations for a single authenticated account.
type Client struct {
	svc *gm.Service
}

// NewClient wraps an authenticated Gmail service.
func NewClient(svc *gm.Service) *Client {
	return &Client{svc: svc}
}

// FetchMessage fetches a complete message by id, including its MIME part
// tree and internal (receipt) date.
func (c *Client) FetchMessage(ctx context.Context, id string) (*gm.Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// ListMessages returns one page of message ids carrying the given label,
// plus the token for the next page ("" when pagination is exhausted).
func (c *Client) ListMessages(ctx context.Context, labelID, pageToken string) ([]string, string, error) {
	call := c.svc.Users.Messages.List("me").
		LabelIds(labelID).
		MaxResults(100).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, resp.NextPageToken, nil
}

// LabelID resolves a label name (as shown in the Gmail UI) to its id.
func (c *Client) LabelID(ctx context.Context, name string) (string, error) {
	resp, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			return l.Id, nil
		}
	}
	return "", fmt.Errorf("label %q not found", name)
}

// PlainTextBody locates the text/plain MIME part of a message and decodes
// it. A message without a decodable plain-text part is an error, never a
// fallback string; the parser must see real body text or nothing.
func PlainTextBody(msg *gm.Message) (string, error) {
	if msg.Payload == nil {
		return "", fmt.Errorf("message %s: no payload", msg.Id)
	}
	data := findPlainPart(msg.Payload)
	if data == "" {
		return "", fmt.Errorf("message %s: no text/plain part", msg.Id)
	}
	body, err := decodeBase64URL(data)
	if err != nil {
		return "", fmt.Errorf("message %s: decode body: %w", msg.Id, err)
	}
	return body, nil
}

// findPlainPart returns the base64url data of the first text/plain part,
// recursing through nested multiparts.
func findPlainPart(payload *gm.MessagePart) string {
	if strings.HasPrefix(payload.MimeType, "text/plain") && payload.Body != nil && payload.Body.Data != "" {
		return payload.Body.Data
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return part.Body.Data
		}
	}
	for _, part := range payload.Parts {
		if len(part.Parts) > 0 {
			if data := findPlainPart(part); data != "" {
				return data
			}
		}
	}
	return ""
}

// decodeBase64URL decodes Gmail's URL-safe base64 content.
func decodeBase64URL(data string) (string, error) {
	data = strings.ReplaceAll(data, "-", "+")
	data = strings.ReplaceAll(data, "_", "/")
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
