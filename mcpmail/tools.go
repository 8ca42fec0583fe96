package mcpmail

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/evanhollis/go-mailbox"
)

// defaultMailbox is used whenever a tool call omits the mailbox argument,
// matching what an agent expects from a mail tool.
const defaultMailbox = "INBOX"

// Folder is the wire form of a folder summary.
type Folder struct {
	Name       string   `json:"name"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Count      uint32   `json:"count"`
	Unseen     uint32   `json:"unseen"`
}

// Message is the wire form of a message summary.
type Message struct {
	UID     uint32    `json:"uid"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
	Flags   []string  `json:"flags,omitempty"`
	Size    uint64    `json:"size"`
}

// Email is the wire form of a full message body.
type Email struct {
	UID         uint32            `json:"uid"`
	Subject     string            `json:"subject"`
	From        string            `json:"from"`
	To          string            `json:"to,omitempty"`
	CC          string            `json:"cc,omitempty"`
	BCC         string            `json:"bcc,omitempty"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Date        time.Time         `json:"date"`
	Flags       []string          `json:"flags,omitempty"`
	Size        uint64            `json:"size"`
	Headers     map[string]string `json:"headers,omitempty"`
	Text        string            `json:"text,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Attachments []AttachmentInfo  `json:"attachments,omitempty"`
}

// AttachmentInfo describes an attachment without carrying its content.
type AttachmentInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     uint64 `json:"size"`
}

// Status reports the outcome of a mutating tool call.
type Status struct {
	Status  string `json:"status"`
	UID     uint32 `json:"uid,omitempty"`
	Mailbox string `json:"mailbox,omitempty"`
}

type listMailboxesInput struct{}

type listMailboxesOutput struct {
	Mailboxes []Folder `json:"mailboxes"`
}

type mailboxInput struct {
	Mailbox string `json:"mailbox,omitempty" jsonschema:"mailbox to check, default INBOX"`
}

type searchInput struct {
	Query   string `json:"query,omitempty" jsonschema:"search filter in IMAP search syntax, e.g. FROM alice@example.com UNSEEN SINCE 01-Jan-2012; empty matches everything"`
	Mailbox string `json:"mailbox,omitempty" jsonschema:"mailbox to search, default INBOX"`
	Offset  int    `json:"offset,omitempty" jsonschema:"number of matches to skip"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of matches to return, 0 for all"`
}

type messagesOutput struct {
	Messages []Message `json:"messages"`
}

type messageInput struct {
	UID     uint32 `json:"uid" jsonschema:"unique id of the message"`
	Mailbox string `json:"mailbox,omitempty" jsonschema:"mailbox holding the message, default INBOX"`
}

type moveInput struct {
	UID           uint32 `json:"uid" jsonschema:"unique id of the message"`
	TargetMailbox string `json:"target_mailbox" jsonschema:"mailbox to move the message to"`
	Mailbox       string `json:"mailbox,omitempty" jsonschema:"mailbox holding the message, default INBOX"`
}

// Attach registers every mail tool on the server.
func (s *Service) Attach(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_mailboxes",
		Description: "List all available mailboxes with message and unseen counts.",
	}, s.listMailboxes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_unseen",
		Description: "List the unseen messages in a mailbox.",
	}, s.checkUnseen)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_emails",
		Description: "Search a mailbox for messages matching a filter in the IMAP search syntax.",
	}, s.searchEmails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_email",
		Description: "Retrieve a message's full content: headers, text, HTML, and attachment descriptors.",
	}, s.viewEmail)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "mark_seen",
		Description: "Mark a message as seen.",
	}, s.markSeen)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_email",
		Description: "Delete a message and expunge the mailbox.",
	}, s.deleteEmail)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "move_email",
		Description: "Move a message to a different mailbox.",
	}, s.moveEmail)
}

func (s *Service) listMailboxes(ctx context.Context, req *mcp.CallToolRequest, in listMailboxesInput) (*mcp.CallToolResult, listMailboxesOutput, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, listMailboxesOutput{}, err
	}

	folders, err := s.browser.ListFolders(ctx)
	if err != nil {
		return nil, listMailboxesOutput{}, err
	}

	out := listMailboxesOutput{Mailboxes: make([]Folder, 0, len(folders))}
	for _, f := range folders {
		out.Mailboxes = append(out.Mailboxes, Folder{
			Name:       f.Name,
			Delimiter:  f.Delimiter,
			Attributes: f.Attributes,
			Count:      f.Count,
			Unseen:     f.Unseen,
		})
	}
	return nil, out, nil
}

func (s *Service) checkUnseen(ctx context.Context, req *mcp.CallToolRequest, in mailboxInput) (*mcp.CallToolResult, messagesOutput, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, messagesOutput{}, err
	}

	summaries, err := s.browser.UnseenMessages(ctx, orDefault(in.Mailbox))
	if err != nil {
		return nil, messagesOutput{}, err
	}
	return nil, messagesFrom(summaries), nil
}

func (s *Service) searchEmails(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, messagesOutput, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, messagesOutput{}, err
	}

	rng := mailbox.Range{Offset: in.Offset, Limit: in.Limit}
	summaries, err := s.browser.ListMessages(ctx, orDefault(in.Mailbox), rng, in.Query)
	if err != nil {
		return nil, messagesOutput{}, err
	}
	return nil, messagesFrom(summaries), nil
}

func (s *Service) viewEmail(ctx context.Context, req *mcp.CallToolRequest, in messageInput) (*mcp.CallToolResult, Email, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, Email{}, err
	}

	body, err := s.browser.FetchMessage(ctx, orDefault(in.Mailbox), in.UID)
	if err != nil {
		return nil, Email{}, err
	}

	out := Email{
		UID:     body.UID,
		Subject: body.Subject,
		From:    body.From.String(),
		To:      body.To.String(),
		CC:      body.CC.String(),
		BCC:     body.BCC.String(),
		ReplyTo: body.ReplyTo.String(),
		Date:    body.Date,
		Flags:   body.Flags.List(),
		Size:    body.Size,
		Headers: body.Headers,
		Text:    body.Text,
		HTML:    body.HTML,
	}
	for _, a := range body.Attachments {
		out.Attachments = append(out.Attachments, AttachmentInfo{
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     uint64(len(a.Content)),
		})
	}
	return nil, out, nil
}

func (s *Service) markSeen(ctx context.Context, req *mcp.CallToolRequest, in messageInput) (*mcp.CallToolResult, Status, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, Status{}, err
	}

	folder := orDefault(in.Mailbox)
	if err := s.browser.MarkSeen(ctx, folder, in.UID); err != nil {
		return nil, Status{}, err
	}
	return nil, Status{Status: "success", UID: in.UID, Mailbox: folder}, nil
}

func (s *Service) deleteEmail(ctx context.Context, req *mcp.CallToolRequest, in messageInput) (*mcp.CallToolResult, Status, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, Status{}, err
	}

	folder := orDefault(in.Mailbox)
	if err := s.browser.DeleteMessage(ctx, folder, in.UID); err != nil {
		return nil, Status{}, err
	}
	return nil, Status{Status: "success", UID: in.UID, Mailbox: folder}, nil
}

func (s *Service) moveEmail(ctx context.Context, req *mcp.CallToolRequest, in moveInput) (*mcp.CallToolResult, Status, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, Status{}, err
	}

	if err := s.browser.MoveMessage(ctx, orDefault(in.Mailbox), in.UID, in.TargetMailbox); err != nil {
		return nil, Status{}, err
	}
	return nil, Status{Status: "success", UID: in.UID, Mailbox: in.TargetMailbox}, nil
}

func orDefault(name string) string {
	if name == "" {
		return defaultMailbox
	}
	return name
}

func messagesFrom(summaries []mailbox.MessageSummary) messagesOutput {
	out := messagesOutput{Messages: make([]Message, 0, len(summaries))}
	for _, m := range summaries {
		out.Messages = append(out.Messages, Message{
			UID:     m.UID,
			Subject: m.Subject,
			From:    m.From.String(),
			Date:    m.Date,
			Flags:   m.Flags.List(),
			Size:    m.Size,
		})
	}
	return out
}
