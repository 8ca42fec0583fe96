// Command mailbox-mcp serves IMAP mailbox browsing tools over MCP stdio.
//
// Configuration comes from the environment: IMAP_SERVER, IMAP_USER and
// IMAP_PASSWORD (or IMAP_ACCESS_TOKEN) are required; see mailbox.ConfigFromEnv
// for the optional variables. The process refuses to start when any required
// variable is missing.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sys/unix"

	"github.com/evanhollis/go-mailbox"
	"github.com/evanhollis/go-mailbox/mcpmail"
)

const version = "v0.1.0"

func main() {
	procCtx, done := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer done()

	cfg, err := mailbox.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	if os.Getenv("MAILBOX_MCP_VERBOSE") != "" {
		mailbox.Verbose = true
	}

	session := mailbox.NewSession(cfg)
	defer func() {
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.Disconnect(shutdown); err != nil {
			log.Printf("WARNING: failed to disconnect session: %v", err)
		}
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mailbox-mcp",
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "IMAP mailbox browsing tools: list mailboxes, search, read, mark, delete, and move messages.",
	})

	mcpmail.NewService(session).Attach(server)

	var transport mcp.Transport = &mcp.StdioTransport{}
	if os.Getenv("MAILBOX_MCP_TRACE") != "" {
		transport = &mcp.LoggingTransport{Transport: transport, Writer: os.Stderr}
	}

	if err := server.Run(procCtx, transport); err != nil && procCtx.Err() == nil {
		log.Fatal(err)
	}
}
