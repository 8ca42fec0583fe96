package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	humanize "github.com/dustin/go-humanize"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/jhillyerd/enmime/v2"
)

var addSlashes = strings.NewReplacer(`"`, `\"`)

// EmailAddresses represents a map of email addresses to display names
type EmailAddresses map[string]string

// MessageSummary is the overview of one message as reported by the server.
// Immutable once returned.
type MessageSummary struct {
	UID     uint32
	Subject string
	From    EmailAddresses
	Date    time.Time
	Flags   MessageFlags
	Size    uint64
}

// MessageBody is one message's full content, fetched on demand and never
// retained by the session.
type MessageBody struct {
	UID         uint32
	Subject     string
	Headers     map[string]string
	From        EmailAddresses
	To          EmailAddresses
	ReplyTo     EmailAddresses
	CC          EmailAddresses
	BCC         EmailAddresses
	Date        time.Time
	Flags       MessageFlags
	Size        uint64
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment is a message attachment or inline part.
type Attachment struct {
	Name     string
	MimeType string
	Content  []byte
}

// Range selects a window of a message listing: skip Offset messages, return
// at most Limit. The zero value means everything.
type Range struct {
	Offset int
	Limit  int
}

// String returns a formatted string representation of EmailAddresses
func (e EmailAddresses) String() string {
	emails := strings.Builder{}
	i := 0
	for e, n := range e {
		if i != 0 {
			emails.WriteString(", ")
		}
		if len(n) != 0 {
			if strings.ContainsRune(n, ',') {
				emails.WriteString(fmt.Sprintf(`"%s" <%s>`, addSlashes.Replace(n), e))
			} else {
				emails.WriteString(fmt.Sprintf(`%s <%s>`, n, e))
			}
		} else {
			emails.WriteString(e)
		}
		i++
	}
	return emails.String()
}

func (m MessageSummary) String() string {
	return fmt.Sprintf("%d %s (%s, %s)", m.UID, m.Subject, m.From, humanize.Bytes(m.Size))
}

// String returns a formatted string representation of a MessageBody
func (b MessageBody) String() string {
	body := strings.Builder{}

	body.WriteString(fmt.Sprintf("Subject: %s\n", b.Subject))

	if len(b.To) != 0 {
		body.WriteString(fmt.Sprintf("To: %s\n", b.To))
	}
	if len(b.From) != 0 {
		body.WriteString(fmt.Sprintf("From: %s\n", b.From))
	}
	if len(b.CC) != 0 {
		body.WriteString(fmt.Sprintf("CC: %s\n", b.CC))
	}
	if len(b.BCC) != 0 {
		body.WriteString(fmt.Sprintf("BCC: %s\n", b.BCC))
	}
	if len(b.ReplyTo) != 0 {
		body.WriteString(fmt.Sprintf("ReplyTo: %s\n", b.ReplyTo))
	}
	if len(b.Text) != 0 {
		if len(b.Text) > 20 {
			body.WriteString(fmt.Sprintf("Text: %s...", b.Text[:20]))
		} else {
			body.WriteString(fmt.Sprintf("Text: %s", b.Text))
		}
		body.WriteString(fmt.Sprintf(" (%s)\n", humanize.Bytes(uint64(len(b.Text)))))
	}
	if len(b.HTML) != 0 {
		if len(b.HTML) > 20 {
			body.WriteString(fmt.Sprintf("HTML: %s...", b.HTML[:20]))
		} else {
			body.WriteString(fmt.Sprintf("HTML: %s", b.HTML))
		}
		body.WriteString(fmt.Sprintf(" (%s)\n", humanize.Bytes(uint64(len(b.HTML)))))
	}

	if len(b.Attachments) != 0 {
		body.WriteString(fmt.Sprintf("%d Attachment(s): %s\n", len(b.Attachments), b.Attachments))
	}

	return body.String()
}

// String returns a formatted string representation of an Attachment
func (a Attachment) String() string {
	return fmt.Sprintf("%s (%s %s)", a.Name, a.MimeType, humanize.Bytes(uint64(len(a.Content))))
}

// ListMessages returns summaries of the messages in folder matching filter,
// in ascending UID order (arrival order on typical servers). The folder is
// auto-selected when it differs from the current selection; the session is
// never re-dialed or re-authenticated. Each call re-queries the server; no
// cursor is retained. An empty filter matches everything; see ParseFilter
// for the filter syntax.
func (s *Session) ListMessages(ctx context.Context, folder string, rng Range, filter string) ([]MessageSummary, error) {
	if err := s.begin("list messages"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.requireAuth("list messages"); err != nil {
		return nil, err
	}

	criteria, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	return s.listLocked(folder, rng, criteria)
}

// UnseenMessages returns summaries of the folder's unseen messages.
func (s *Session) UnseenMessages(ctx context.Context, folder string) ([]MessageSummary, error) {
	if err := s.begin("check unseen"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.requireAuth("check unseen"); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	return s.listLocked(folder, Range{}, criteria)
}

// listLocked searches the folder and fetches summaries for the matching
// window. Callers must hold the session lock.
func (s *Session) listLocked(folder string, rng Range, criteria *imap.SearchCriteria) ([]MessageSummary, error) {
	if err := s.ensureSelected("list messages", folder); err != nil {
		return nil, err
	}

	uids, err := s.conn.searchUIDs(criteria)
	if err != nil {
		return nil, translate("search", err, nil)
	}

	uids = clampRange(uids, rng)
	if len(uids) == 0 {
		return []MessageSummary{}, nil
	}

	buffers, err := s.conn.fetchSummaries(imap.UIDSetNum(uids...))
	if err != nil {
		return nil, translate("fetch summaries", err, nil)
	}

	summaries := make([]MessageSummary, 0, len(buffers))
	for _, buf := range buffers {
		summaries = append(summaries, summaryFrom(buf))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].UID < summaries[j].UID })

	debugLog(s.id, s.folder, "messages listed", "matched", len(uids), "returned", len(summaries))
	return summaries, nil
}

// FetchMessage fetches one message's full content by unique id. The fetch
// peeks, so reading never flips the message to seen. A malformed server
// payload fails with ProtocolError and no partial body is returned.
func (s *Session) FetchMessage(ctx context.Context, folder string, uid uint32) (*MessageBody, error) {
	if err := s.begin("fetch message"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.ensureSelected("fetch message", folder); err != nil {
		return nil, err
	}

	buf, raw, err := s.conn.fetchBody(imap.UID(uid))
	if err != nil {
		return nil, translate("fetch "+strconv.FormatUint(uint64(uid), 10), err, nil)
	}
	if buf == nil {
		return nil, &NotFoundError{Kind: "message", Name: strconv.FormatUint(uint64(uid), 10)}
	}
	if raw == nil {
		return nil, &ProtocolError{Op: "fetch", Err: fmt.Errorf("server returned no body section for UID %d", uid)}
	}

	body, err := bodyFrom(buf, raw)
	if err != nil {
		if Verbose {
			debugLog(s.id, s.folder, "message body could not be parsed", "error", err, "raw", spew.Sdump(string(raw)))
		}
		return nil, &ProtocolError{Op: "parse body", Err: err}
	}

	debugLog(s.id, s.folder, "message fetched", "uid", uid, "size", body.Size)
	return body, nil
}

// MarkSeen marks a message as seen/read.
func (s *Session) MarkSeen(ctx context.Context, folder string, uid uint32) error {
	if err := s.begin("mark seen"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.ensureSelected("mark seen", folder); err != nil {
		return err
	}

	err := s.conn.store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	})
	return translate("store", err, nil)
}

// DeleteMessage flags a message deleted and expunges the folder.
func (s *Session) DeleteMessage(ctx context.Context, folder string, uid uint32) error {
	if err := s.begin("delete message"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.ensureSelected("delete message", folder); err != nil {
		return err
	}

	err := s.conn.store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	})
	if err != nil {
		return translate("store", err, nil)
	}

	if err := s.conn.expunge(); err != nil {
		return translate("expunge", err, nil)
	}

	debugLog(s.id, s.folder, "message deleted", "uid", uid)
	return nil
}

// MoveMessage moves a message to the target folder. An unknown target fails
// with NotFoundError.
func (s *Session) MoveMessage(ctx context.Context, folder string, uid uint32, target string) error {
	if err := s.begin("move message"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.ensureSelected("move message", folder); err != nil {
		return err
	}

	err := s.conn.move(imap.UIDSetNum(imap.UID(uid)), target)
	if err != nil {
		return translate("move to "+target, err, &NotFoundError{Kind: "mailbox", Name: target})
	}

	debugLog(s.id, s.folder, "message moved", "uid", uid, "target", target)
	return nil
}

// clampRange applies a listing window to the ascending UID list.
func clampRange(uids []imap.UID, rng Range) []imap.UID {
	if rng.Offset > 0 {
		if rng.Offset >= len(uids) {
			return nil
		}
		uids = uids[rng.Offset:]
	}
	if rng.Limit > 0 && rng.Limit < len(uids) {
		uids = uids[:rng.Limit]
	}
	return uids
}

// summaryFrom reshapes one FETCH response into a MessageSummary.
func summaryFrom(buf *imapclient.FetchMessageBuffer) MessageSummary {
	summary := MessageSummary{
		UID:   uint32(buf.UID),
		Date:  buf.InternalDate,
		Flags: flagsFrom(buf.Flags),
		Size:  uint64(buf.RFC822Size),
	}

	if env := buf.Envelope; env != nil {
		summary.Subject = env.Subject
		summary.From = addressMap(env.From)
		if summary.Date.IsZero() {
			summary.Date = env.Date
		}
	}

	return summary
}

// bodyFrom parses the raw RFC 822 payload into a MessageBody. The header
// map and address lists come from the parsed MIME envelope, not the FETCH
// envelope, so uncommon headers survive.
func bodyFrom(buf *imapclient.FetchMessageBuffer, raw []byte) (*MessageBody, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	body := &MessageBody{
		UID:     uint32(buf.UID),
		Subject: env.GetHeader("Subject"),
		Headers: make(map[string]string),
		Date:    buf.InternalDate,
		Flags:   flagsFrom(buf.Flags),
		Size:    uint64(buf.RFC822Size),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	for _, key := range env.GetHeaderKeys() {
		body.Headers[key] = env.GetHeader(key)
	}

	for _, a := range []struct {
		dest   *EmailAddresses
		header string
	}{
		{&body.From, "From"},
		{&body.ReplyTo, "Reply-To"},
		{&body.To, "To"},
		{&body.CC, "Cc"},
		{&body.BCC, "Bcc"},
	} {
		alist, _ := env.AddressList(a.header)
		if len(alist) == 0 {
			continue
		}
		*a.dest = make(EmailAddresses, len(alist))
		for _, addr := range alist {
			(*a.dest)[strings.ToLower(addr.Address)] = addr.Name
		}
	}

	for _, a := range env.Attachments {
		body.Attachments = append(body.Attachments, Attachment{
			Name:     a.FileName,
			MimeType: a.ContentType,
			Content:  a.Content,
		})
	}
	for _, a := range env.Inlines {
		body.Attachments = append(body.Attachments, Attachment{
			Name:     a.FileName,
			MimeType: a.ContentType,
			Content:  a.Content,
		})
	}

	if body.Date.IsZero() && buf.Envelope != nil {
		body.Date = buf.Envelope.Date
	}

	return body, nil
}

// addressMap reshapes envelope addresses the way EmailAddresses expects.
func addressMap(addrs []imap.Address) EmailAddresses {
	if len(addrs) == 0 {
		return nil
	}
	m := make(EmailAddresses, len(addrs))
	for _, addr := range addrs {
		m[strings.ToLower(addr.Addr())] = addr.Name
	}
	return m
}
