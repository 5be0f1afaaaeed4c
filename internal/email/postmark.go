// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// RedemptionNotice is what a user is told after redeeming a reward.
type RedemptionNotice struct {
	To         string
	UserName   string
	RewardName string
	Code       string
	NewBalance int
}

// SendRedemptionCode emails the redemption code the user presents to claim
// a reward.
func (c *Client) SendRedemptionCode(ctx context.Context, n RedemptionNotice) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token or sender")
	}

	link := c.baseURL + "/rewards"
	subject := fmt.Sprintf("Seu código de resgate: %s", n.Code)
	textBody := fmt.Sprintf(
		"Olá, %s!\n\nVocê resgatou \"%s\".\nCódigo de resgate: %s\nSaldo atual: %d pontos\n\nVeja seus resgates em %s",
		n.UserName, n.RewardName, n.Code, n.NewBalance, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>Olá, %s!</p><p>Você resgatou <strong>%s</strong>.</p><p>Código de resgate: <code>%s</code></p><p>Saldo atual: %d pontos</p><p><a href="%s">Ver meus resgates</a></p>`,
		html.EscapeString(n.UserName), html.EscapeString(n.RewardName), html.EscapeString(n.Code), n.NewBalance, html.EscapeString(link),
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       n.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      "redemption",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
