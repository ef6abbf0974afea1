package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSGateway posts to an HTTP SMS provider. The provider expects a
// form-encoded token/to/text body and answers 200 on acceptance.
type SMSGateway struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewSMSGateway(endpoint, token string) *SMSGateway {
	return &SMSGateway{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *SMSGateway) SendSMS(phone, message string) error {
	form := url.Values{}
	form.Set("token", g.token)
	form.Set("to", phone)
	form.Set("text", message)

	resp, err := g.client.Post(g.endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}

// LogSMS is the development stand-in used when no gateway is configured.
// It accepts every message; the caller decides whether to log the content.
type LogSMS struct {
	Log func(phone, message string)
}

func (l *LogSMS) SendSMS(phone, message string) error {
	if l.Log != nil {
		l.Log(phone, message)
	}
	return nil
}
