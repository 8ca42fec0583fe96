// Package mcpmail binds a mailbox session's browsing operations to MCP
// tools, so an agent can list folders, search, read, and file messages over
// a stdio transport. The package owns the dispatcher-side policy the session
// deliberately leaves out: connect retries and error reporting to the agent.
package mcpmail

import (
	"context"

	retry "github.com/StirlingMarketingGroup/go-retry"

	"github.com/evanhollis/go-mailbox"
)

// Browser is the contract a transport adapter binds to. *mailbox.Session
// implements it; tests substitute fakes.
type Browser interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ListFolders(ctx context.Context) ([]mailbox.FolderSummary, error)
	SelectFolder(ctx context.Context, folder string) (mailbox.FolderSummary, error)
	ListMessages(ctx context.Context, folder string, rng mailbox.Range, filter string) ([]mailbox.MessageSummary, error)
	UnseenMessages(ctx context.Context, folder string) ([]mailbox.MessageSummary, error)
	FetchMessage(ctx context.Context, folder string, uid uint32) (*mailbox.MessageBody, error)
	MarkSeen(ctx context.Context, folder string, uid uint32) error
	DeleteMessage(ctx context.Context, folder string, uid uint32) error
	MoveMessage(ctx context.Context, folder string, uid uint32, target string) error
}

var _ Browser = (*mailbox.Session)(nil)

// Service exposes one Browser's operations as MCP tools.
type Service struct {
	browser Browser
}

// NewService returns a Service serving tools from the given browser.
func NewService(browser Browser) *Service {
	return &Service{browser: browser}
}

// ensure brings the session to an authenticated state before a tool runs.
// Connect retries live here, not in the session: transient dial failures
// are retried, credential rejections and busy sessions are not.
func (s *Service) ensure(ctx context.Context) error {
	return retry.Retry(func() error {
		err := s.browser.Connect(ctx)
		if err == nil {
			return nil
		}
		switch mailbox.Kind(err) {
		case "auth", "busy", "config":
			// PermFail stops retrying and surfaces the wrapped error as-is.
			return &retry.PermFail{Err: err}
		}
		return err
	}, mailbox.RetryCount, nil, func() error {
		return nil
	})
}
