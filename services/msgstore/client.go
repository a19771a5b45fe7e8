// Package msgstore implements chat.MessageStore over the Madrasa message API.
package msgstore

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
)

const (
	actionSend     = "SEND"
	actionMarkRead = "MARK_READ"
)

type (
	Client struct {
		http *resty.Client
	}

	messageRequest struct {
		Action  string `json:"action"`
		PeerID  string `json:"peerId"`
		Content string `json:"content,omitempty"`
	}
)

var _ chat.MessageStore = (*Client)(nil) // interface compliance check

// New returns a Client authenticated with conf.Token.
func New(conf core.ClientConfig) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(conf.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(conf.Timeout)
	if conf.Token != "" {
		c.SetAuthToken(conf.Token)
	}
	return &Client{http: c}
}

// check converts a failed call or a non-2xx response into a *chat.TransportError.
func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &chat.TransportError{Op: op, Err: err}
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return &chat.TransportError{Op: op, StatusCode: resp.StatusCode(), Err: errors.New(msg)}
	}
	return nil
}

func (c *Client) FetchHistory(ctx context.Context, peerID string) ([]chat.ChatMessage, error) {
	var msgs []chat.ChatMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("peerId", peerID).
		SetResult(&msgs).
		Get("/messages")
	if err = check("fetching history", resp, err); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = make([]chat.ChatMessage, 0)
	}
	return msgs, nil
}

func (c *Client) post(ctx context.Context, op string, body messageRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/messages")
	return check(op, resp, err)
}

func (c *Client) SendMessage(ctx context.Context, peerID, content string) error {
	return c.post(ctx, "sending message", messageRequest{Action: actionSend, PeerID: peerID, Content: content})
}

func (c *Client) MarkRead(ctx context.Context, peerID string) error {
	return c.post(ctx, "marking thread read", messageRequest{Action: actionMarkRead, PeerID: peerID})
}

func (c *Client) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&convs).
		Get("/conversations")
	if err = check("fetching conversations", resp, err); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) FetchContact(ctx context.Context, peerID string) (chat.Contact, error) {
	var contact chat.Contact
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", peerID).
		SetResult(&contact).
		Get("/contacts/{id}")
	if err = check("fetching contact", resp, err); err != nil {
		return chat.Contact{}, err
	}
	return contact, nil
}
