// internal/email/dispatcher.go
package email

import (
	"context"
	"html"
	"net/url"
	"strings"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/notification"
)

// Message is one rendered email ready for a transport.
type Message struct {
	To              string `json:"to"`
	Subject         string `json:"subject"`
	HTML            string `json:"html"`
	UnsubscribeLink string `json:"unsubscribeLink"`
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type Dispatcher struct {
	transport      Transport
	unsubscribeURL string
	log            logger.Logger
}

func NewDispatcher(transport Transport, unsubscribeBaseURL string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		transport:      transport,
		unsubscribeURL: strings.TrimRight(unsubscribeBaseURL, "/"),
		log:            log.WithFields(map[string]interface{}{"component": "email-dispatcher"}),
	}
}

// Dispatch renders the type's HTML template and hands it to the transport.
// A missing template is returned as an error. Transport failures are only
// logged, they never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, to string, t notification.Type, data map[string]interface{}) error {
	tpl, ok := Lookup(t)
	if !ok {
		return apperrors.NewEmailTemplateNotFoundError(string(t))
	}

	msg := d.Render(to, t, tpl, data)
	if err := d.transport.Send(ctx, msg); err != nil {
		d.log.Error("email delivery failed", map[string]interface{}{
			"type":  string(t),
			"to":    to,
			"error": apperrors.NewEmailDeliveryFailedError(string(t), err),
		})
		metrics.NotificationEmails.WithLabelValues(string(t), "failed").Inc()
		return nil
	}
	metrics.NotificationEmails.WithLabelValues(string(t), "sent").Inc()
	return nil
}

func (d *Dispatcher) Render(to string, t notification.Type, tpl Template, data map[string]interface{}) Message {
	link := d.UnsubscribeLink(t)

	vars := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		vars[k] = v
	}
	vars[UnsubscribeToken] = link

	return Message{
		To:              to,
		Subject:         notification.Render(tpl.Subject, vars),
		HTML:            notification.RenderWith(tpl.HTML, vars, html.EscapeString),
		UnsubscribeLink: link,
	}
}

func (d *Dispatcher) UnsubscribeLink(t notification.Type) string {
	return d.unsubscribeURL + "/settings/notifications?unsubscribe=" + url.QueryEscape(string(t))
}
