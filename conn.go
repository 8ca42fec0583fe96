package mailbox

import (
	"context"
	"crypto/tls"
	"io"
	"mime"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"golang.org/x/net/html/charset"
)

// conn is the narrow protocol surface the session drives. imapConn implements
// it over go-imap's client; tests substitute fakes. Every method issues one
// command and blocks until its tagged response.
type conn interface {
	login(username, password string) error
	authenticate(username, accessToken string) error
	list() ([]*imap.ListData, error)
	status(mailbox string) (*imap.StatusData, error)
	selectMailbox(mailbox string) (*imap.SelectData, error)
	searchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error)
	fetchSummaries(uids imap.UIDSet) ([]*imapclient.FetchMessageBuffer, error)
	fetchBody(uid imap.UID) (*imapclient.FetchMessageBuffer, []byte, error)
	store(uids imap.UIDSet, flags *imap.StoreFlags) error
	move(uids imap.UIDSet, mailbox string) error
	expunge() error
	logout() error
	close() error
}

// imapConn drives one TLS connection through go-imap's client.
type imapConn struct {
	netConn net.Conn
	client  *imapclient.Client
	timeout time.Duration
}

// dialIMAP establishes the TLS connection and waits for the server greeting.
// Authentication is a separate step so credential rejections are not
// conflated with transport failures.
func dialIMAP(ctx context.Context, cfg Config, sessionID string) (conn, error) {
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if cfg.TLSSkipVerify || TLSSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	dialer := &net.Dialer{Timeout: cfg.dialTimeout()}
	tlsConn, err := tls.DialWithDialer(dialer, "tcp", cfg.Addr(), tlsConfig)
	if err != nil {
		return nil, err
	}

	options := &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charsetReader},
	}
	if Verbose {
		options.DebugWriter = &traceWriter{sessionID: sessionID, secret: cfg.Password}
	}

	// The greeting wait is bounded by the dial timeout; commands get
	// their own deadline per call.
	if timeout := cfg.dialTimeout(); timeout != 0 {
		_ = tlsConn.SetDeadline(time.Now().Add(timeout))
	}
	client := imapclient.New(tlsConn, options)
	if err := client.WaitGreeting(); err != nil {
		_ = client.Close()
		return nil, err
	}
	_ = tlsConn.SetDeadline(time.Time{})

	return &imapConn{netConn: tlsConn, client: client, timeout: cfg.commandTimeout()}, nil
}

// charsetReader decodes non-UTF-8 MIME words using the x/net charset tables.
func charsetReader(cs string, input io.Reader) (io.Reader, error) {
	return charset.NewReaderLabel(cs, input)
}

// deadline arms the per-command deadline and returns a func disarming it.
func (c *imapConn) deadline() func() {
	if c.timeout == 0 {
		return func() {}
	}
	_ = c.netConn.SetDeadline(time.Now().Add(c.timeout))
	return func() { _ = c.netConn.SetDeadline(time.Time{}) }
}

func (c *imapConn) login(username, password string) error {
	defer c.deadline()()
	return c.client.Login(username, password).Wait()
}

func (c *imapConn) authenticate(username, accessToken string) error {
	defer c.deadline()()
	return c.client.Authenticate(newXOAuth2Client(username, accessToken))
}

func (c *imapConn) list() ([]*imap.ListData, error) {
	defer c.deadline()()
	return c.client.List("", "*", nil).Collect()
}

func (c *imapConn) status(mailbox string) (*imap.StatusData, error) {
	defer c.deadline()()
	return c.client.Status(mailbox, &imap.StatusOptions{
		NumMessages: true,
		NumUnseen:   true,
	}).Wait()
}

func (c *imapConn) selectMailbox(mailbox string) (*imap.SelectData, error) {
	defer c.deadline()()
	return c.client.Select(mailbox, nil).Wait()
}

func (c *imapConn) searchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	defer c.deadline()()
	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (c *imapConn) fetchSummaries(uids imap.UIDSet) ([]*imapclient.FetchMessageBuffer, error) {
	defer c.deadline()()
	return c.client.Fetch(uids, &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		RFC822Size:   true,
	}).Collect()
}

func (c *imapConn) fetchBody(uid imap.UID) (*imapclient.FetchMessageBuffer, []byte, error) {
	defer c.deadline()()

	// BODY.PEEK so reading a message never sets \Seen as a side effect.
	section := &imap.FetchItemBodySection{Peek: true}
	cmd := c.client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		RFC822Size:   true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})

	msg := cmd.Next()
	if msg == nil {
		return nil, nil, cmd.Close()
	}

	buf, err := msg.Collect()
	if err != nil {
		_ = cmd.Close()
		return nil, nil, err
	}
	if err := cmd.Close(); err != nil {
		return nil, nil, err
	}

	return buf, buf.FindBodySection(section), nil
}

func (c *imapConn) store(uids imap.UIDSet, flags *imap.StoreFlags) error {
	defer c.deadline()()
	return c.client.Store(uids, flags, nil).Close()
}

func (c *imapConn) move(uids imap.UIDSet, mailbox string) error {
	defer c.deadline()()
	_, err := c.client.Move(uids, mailbox).Wait()
	return err
}

func (c *imapConn) expunge() error {
	defer c.deadline()()
	return c.client.Expunge().Close()
}

func (c *imapConn) logout() error {
	defer c.deadline()()
	return c.client.Logout().Wait()
}

func (c *imapConn) close() error {
	return c.client.Close()
}

// traceWriter forwards raw protocol traffic to the debug log with the
// password masked. Only installed when Verbose is set.
type traceWriter struct {
	sessionID string
	secret    string
}

func (w *traceWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	if w.secret != "" {
		line = strings.ReplaceAll(line, w.secret, "****")
	}
	debugLog(w.sessionID, "", "imap trace", "data", line)
	return len(p), nil
}
