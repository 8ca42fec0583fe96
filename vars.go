package mailbox

import "time"

// Verbose enables debug logging of every session operation.
var Verbose = false

// RetryCount is the number of times the dispatcher-side connect helpers
// retry establishing a connection. The session itself never retries.
var RetryCount = 10

// DialTimeout defines how long to wait when establishing a new connection.
// Zero means no timeout.
var DialTimeout time.Duration

// CommandTimeout defines how long to wait for a command to complete.
// Zero means no timeout.
var CommandTimeout time.Duration

// TLSSkipVerify disables certificate verification when establishing new
// connections. Use with caution; skipping verification exposes the
// connection to man-in-the-middle attacks.
var TLSSkipVerify bool
