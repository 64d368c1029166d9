package gmail

import (
	"context"
	"encoding/base64"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mikey/phishing-detector/internal/auth"
	"github.com/mikey/phishing-detector/internal/core"
)

// Scopes required by the client. Modify access covers reading messages and
// removing the UNREAD label.
var Scopes = []string{gmail.GmailModifyScope}

// Client wraps the Gmail Users service. The underlying service is created on
// first use so that the consent flow, when needed, runs on demand rather than
// at process startup.
type Client struct {
	store  *auth.TokenStore
	logger *zap.Logger

	mu  sync.Mutex
	svc *gmail.UsersService
}

// NewClient creates a new Gmail client backed by the given token store
func NewClient(store *auth.TokenStore, logger *zap.Logger) *Client {
	return &Client{
		store:  store,
		logger: logger,
	}
}

func (c *Client) service(ctx context.Context) (*gmail.UsersService, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}

	httpClient, err := c.store.Client(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, core.NewRemoteError("failed to create Gmail service", err)
	}

	c.svc = svc.Users
	return c.svc, nil
}

// ListUnread returns up to maxResults ids of messages currently labeled
// unread, newest first. The slice is empty when there are none.
func (c *Client) ListUnread(ctx context.Context, maxResults int64) ([]string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	res, err := svc.Messages.List("me").
		LabelIds("UNREAD").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, core.NewRemoteError("failed to list unread messages", err)
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}

	c.logger.Debug("Listed unread messages", zap.Int("count", len(ids)))
	return ids, nil
}

// GetMessage fetches the full message payload, headers and snippet for one id
func (c *Client) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
			return nil, core.NewNotFoundError("message not found: " + id)
		}
		return nil, core.NewRemoteError("failed to get message "+id, err)
	}

	var headers []core.Header
	if msg.Payload != nil {
		headers = make([]core.Header, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			headers = append(headers, core.Header{Name: h.Name, Value: h.Value})
		}
	}

	return &core.Message{
		ID:      msg.Id,
		Snippet: msg.Snippet,
		Headers: headers,
		Body:    ExtractBody(msg.Payload),
	}, nil
}

// MarkRead removes the UNREAD label. Removing an absent label is a no-op on
// the API side, so the call is safe on already-read messages.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	_, err = svc.Messages.Modify("me", id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return core.NewRemoteError("failed to mark message read: "+id, err)
	}
	return nil
}

// ExtractBody finds the first text/plain part in the payload tree,
// depth-first, and returns its decoded content. When no part matches, the
// payload's own body data is used. Returns the empty string when neither
// exists; callers fall back to the snippet.
func ExtractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if body := findPlainTextPart(payload.Parts); body != "" {
		return body
	}

	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBodyData(payload.Body.Data)
	}

	return ""
}

func findPlainTextPart(parts []*gmail.MessagePart) string {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBodyData(part.Body.Data)
		}
		if body := findPlainTextPart(part.Parts); body != "" {
			return body
		}
	}
	return ""
}

// decodeBodyData decodes the API's base64url body data. Decoding is
// deliberately lossy: undecodable bytes are replaced rather than failing the
// whole fetch.
func decodeBodyData(data string) string {
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(data)
	}
	if err != nil {
		// Some senders produce standard base64 despite the API contract.
		raw, err = base64.StdEncoding.DecodeString(data)
	}
	if err != nil {
		return ""
	}
	return decodeLossyUTF8(raw)
}

func decodeLossyUTF8(raw []byte) string {
	decoded, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
