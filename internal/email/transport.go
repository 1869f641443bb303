// internal/email/transport.go
package email

import (
	"context"
	"fmt"

	commonhttp "notification-workers/internal/common/http"
)

// HTTPTransport posts each message as JSON to a mail-sending endpoint.
type HTTPTransport struct {
	client   *commonhttp.Client
	endpoint string
	apiKey   string
}

func NewHTTPTransport(client *commonhttp.Client, endpoint, apiKey string) *HTTPTransport {
	return &HTTPTransport{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) error {
	headers := map[string]string{}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}

	resp, err := t.client.PostJSON(ctx, t.endpoint, headers, msg)
	if err != nil {
		return fmt.Errorf("post to mail endpoint: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("mail endpoint returned status %d: %s", resp.StatusCode, truncate(string(resp.Body), 256))
	}
	return nil
}

// HTMLSender is satisfied by the common SES client.
type HTMLSender interface {
	SendHTML(ctx context.Context, to, subject, html string, headers map[string]string) (string, error)
}

type SESTransport struct {
	sender HTMLSender
}

func NewSESTransport(sender HTMLSender) *SESTransport {
	return &SESTransport{sender: sender}
}

func (t *SESTransport) Send(ctx context.Context, msg Message) error {
	if _, err := t.sender.SendHTML(ctx, msg.To, msg.Subject, msg.HTML, nil); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
