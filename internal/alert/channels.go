package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"net/textproto"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"

	"camperwatch/internal/models"
)

// EmailChannel delivers full-detail alerts over SMTP.
type EmailChannel struct {
	enabled    bool
	host       string
	port       int
	user       string
	pass       string
	from       string
	recipients []string
}

func NewEmailChannel(enabled bool, host string, port int, user, pass, from string, recipients []string) *EmailChannel {
	return &EmailChannel{
		enabled: enabled, host: host, port: port,
		user: user, pass: pass, from: from, recipients: recipients,
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Enabled() bool {
	return c.enabled && len(c.recipients) > 0
}

func (c *EmailChannel) Send(_ context.Context, alerts []models.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}
	subject, body := formatEmail(alerts)
	if err := c.deliver(subject, body); err != nil {
		return 0, err
	}
	return len(alerts), nil
}

func (c *EmailChannel) SendSummary(_ context.Context, s Summary) error {
	return c.deliver("camperwatch: daily market summary "+s.Date, formatSummaryText(s))
}

func (c *EmailChannel) deliver(subject, body string) error {
	e := &email.Email{
		From:    c.from,
		To:      c.recipients,
		Subject: subject,
		Text:    []byte(body),
		Headers: textproto.MIMEHeader{},
	}
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	if err := e.Send(addr, smtp.PlainAuth("", c.user, c.pass, c.host)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// ChatChannel posts a compact digest to a chat webhook.
type ChatChannel struct {
	enabled    bool
	webhookURL string
	token      string
	client     *resty.Client
}

func NewChatChannel(enabled bool, webhookURL, token string) *ChatChannel {
	return &ChatChannel{
		enabled:    enabled,
		webhookURL: webhookURL,
		token:      token,
		client:     resty.New(),
	}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Enabled() bool {
	return c.enabled && c.webhookURL != ""
}

func (c *ChatChannel) Send(ctx context.Context, alerts []models.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}
	if err := c.post(ctx, formatChat(alerts)); err != nil {
		return 0, err
	}
	return len(alerts), nil
}

func (c *ChatChannel) SendSummary(ctx context.Context, s Summary) error {
	return c.post(ctx, formatSummaryText(s))
}

func (c *ChatChannel) post(ctx context.Context, text string) error {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	resp, err := req.Post(c.webhookURL)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post: status %d", resp.StatusCode())
	}
	return nil
}

// SMSChannel delivers only HIGH-severity alerts through a telephony REST
// API, one message per alert per recipient.
type SMSChannel struct {
	enabled    bool
	accountSID string
	authToken  string
	from       string
	recipients []string
	baseURL    string
	client     *resty.Client
}

func NewSMSChannel(enabled bool, accountSID, authToken, from string, recipients []string, baseURL string) *SMSChannel {
	return &SMSChannel{
		enabled:    enabled,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		recipients: recipients,
		baseURL:    baseURL,
		client:     resty.New(),
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Enabled() bool {
	return c.enabled && len(c.recipients) > 0
}

func (c *SMSChannel) Send(ctx context.Context, alerts []models.Alert) (int, error) {
	high := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity == models.SeverityHigh {
			high = append(high, a)
		}
	}
	if len(high) == 0 {
		return 0, nil
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	sent := 0
	var lastErr error
	for _, a := range high {
		body := formatSMS(a)
		for _, to := range c.recipients {
			resp, err := c.client.R().
				SetContext(ctx).
				SetBasicAuth(c.accountSID, c.authToken).
				SetFormData(map[string]string{
					"From": c.from,
					"To":   to,
					"Body": body,
				}).
				Post(endpoint)
			if err != nil {
				lastErr = fmt.Errorf("sms post: %w", err)
				continue
			}
			if resp.IsError() {
				lastErr = fmt.Errorf("sms post: status %d", resp.StatusCode())
				continue
			}
			sent++
		}
	}
	if sent == 0 && lastErr != nil {
		return 0, lastErr
	}
	return sent, nil
}

// SendSummary is a no-op for SMS: daily digests never carry HIGH severity.
func (c *SMSChannel) SendSummary(context.Context, Summary) error { return nil }
