// Package email delivers transactional mail through Postmark.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/dukerupert/elevenses/internal/model"
)

const postmarkAPI = "https://api.postmarkapp.com/email"

// Client sends mail through the Postmark HTTP API. Credentials can be
// swapped at runtime, so reads go through the mutex.
type Client struct {
	mu          sync.RWMutex
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a server token is present. Unconfigured
// clients refuse to send rather than silently dropping mail.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverToken != ""
}

// UpdateConfig hot-reloads the Postmark credentials and base URL.
func (c *Client) UpdateConfig(serverToken, fromEmail, baseURL string) {
	c.mu.Lock()
	c.serverToken = serverToken
	c.fromEmail = fromEmail
	c.baseURL = baseURL
	c.mu.Unlock()
}

func (c *Client) snapshot() (token, from, baseURL string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverToken, c.fromEmail, c.baseURL
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendAuthCode emails a 6-digit verification code for login, registration,
// or a household invitation.
func (c *Client) SendAuthCode(toEmail, code, purpose, householdName string) error {
	token, from, baseURL := c.snapshot()
	if token == "" {
		return fmt.Errorf("email client not configured: missing server token")
	}

	var subject, action string
	switch purpose {
	case model.PurposeLogin:
		subject = "Your Elevenses sign-in code"
		action = "sign in"
	case model.PurposeRegister:
		subject = "Welcome to Elevenses"
		action = "complete your registration"
	case model.PurposeInvite:
		subject = fmt.Sprintf("You've been invited to %s on Elevenses", householdName)
		action = "accept your invitation"
	default:
		subject = "Your Elevenses code"
		action = "continue"
	}

	textBody := fmt.Sprintf("Enter this code to %s:\n\n%s\n\nIt expires in 15 minutes.", action, code)
	htmlBody := fmt.Sprintf(
		`<p>Enter this code to %s:</p><p><strong style="font-size:24px;letter-spacing:4px">%s</strong></p><p>It expires in 15 minutes.</p>`,
		action, code,
	)
	if purpose == model.PurposeInvite && baseURL != "" {
		textBody += fmt.Sprintf("\n\nEnter it at %s/login", baseURL)
		htmlBody += fmt.Sprintf(`<p>Enter it at <a href="%s/login">%s/login</a></p>`, baseURL, baseURL)
	}

	return c.post(token, postmarkEmail{
		From:     from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) post(token string, msg postmarkEmail) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkAPI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

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
