package mailbox

import (
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/sqs/go-xoauth2"
)

// xoauth2Client is a sasl.Client for the XOAUTH2 mechanism used by Gmail and
// Office 365. The initial response carries the user and bearer token; a
// server challenge means the token was rejected.
type xoauth2Client struct {
	username    string
	accessToken string
}

func newXOAuth2Client(username, accessToken string) sasl.Client {
	return &xoauth2Client{username: username, accessToken: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	return "XOAUTH2", []byte(xoauth2.OAuth2String(c.username, c.accessToken)), nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// A challenge is an error blob describing the rejected token. The
	// mechanism wants an empty line back, after which the server sends a
	// tagged NO; the empty response lets that surface as the real error.
	if len(challenge) == 0 {
		return nil, fmt.Errorf("xoauth2: unexpected empty challenge")
	}
	return []byte{}, nil
}
