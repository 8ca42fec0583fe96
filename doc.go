// Package mailbox provides a credential-driven IMAP mailbox session for
// agent tooling.
//
// A Session owns one authenticated connection to an IMAP server and exposes
// the handful of browsing operations a tool dispatcher needs:
//
//   - Connecting over TLS and authenticating with LOGIN or XOAUTH2
//   - Listing folders with message and unseen counts
//   - Selecting folders, searching with the native IMAP search syntax,
//     and listing message summaries
//   - Fetching full message bodies (text, HTML, attachments) without
//     marking them seen
//   - Marking seen, deleting + expunging, and moving messages
//
// The wire protocol is delegated to go-imap; this package adds the session
// state machine, response reshaping, and a small typed error set so callers
// can react to failures without parsing strings. Operations on one Session
// are serialized; a second concurrent call fails with BusyError rather than
// corrupting session state.
package mailbox
