// Package twilio places the outbound reminder voice calls.
package twilio

import (
	"context"
	"errors"
	"strings"
	"sync"

	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	AccountSID string
	AuthToken  string
}

// Caller wraps the Twilio REST client. Credentials are swappable at runtime
// via Apply.
type Caller struct {
	mu     sync.Mutex
	client *twilio.RestClient
}

func New(cfg Config) (*Caller, error) {
	c := &Caller{}
	if err := c.Apply(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply rebuilds the REST client with new credentials.
func (c *Caller) Apply(cfg Config) error {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return errors.New("twilio: account sid and auth token are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// PlaceCall dials the patient with the given TwiML script and returns the
// call SID.
func (c *Caller) PlaceCall(ctx context.Context, to, from, twiml string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return "", errors.New("twilio: client not configured")
	}

	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetTwiml(twiml)

	resp, err := client.Api.CreateCall(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", errors.New("twilio: call created without a sid")
	}
	return *resp.Sid, nil
}
