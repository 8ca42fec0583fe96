package mailbox

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the standard IMAP-over-TLS port.
const DefaultPort = 993

// Config carries the credentials and tuning for one session. It is immutable
// once loaded; the password and access token are never logged.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// AccessToken, when set, switches authentication from LOGIN to XOAUTH2
	// and Password is ignored.
	AccessToken string

	// TLSSkipVerify disables certificate verification for this session.
	TLSSkipVerify bool

	// DialTimeout and CommandTimeout bound connection establishment and
	// individual commands. Zero means the package-level defaults apply.
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout != 0 {
		return c.DialTimeout
	}
	return DialTimeout
}

func (c Config) commandTimeout() time.Duration {
	if c.CommandTimeout != 0 {
		return c.CommandTimeout
	}
	return CommandTimeout
}

// ConfigFromEnv loads a Config from the process environment:
//
//	IMAP_SERVER          required, server hostname
//	IMAP_USER            required, login username
//	IMAP_PASSWORD        required unless IMAP_ACCESS_TOKEN is set
//	IMAP_ACCESS_TOKEN    optional, switches to XOAUTH2
//	IMAP_PORT            optional, default 993
//	IMAP_TLS_SKIP_VERIFY optional bool
//	IMAP_DIAL_TIMEOUT    optional duration, e.g. "30s"
//	IMAP_COMMAND_TIMEOUT optional duration
//
// A missing required variable yields a ConfigError; the caller must treat it
// as fatal and not start serving.
func ConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("imap")
	v.AutomaticEnv()
	v.SetDefault("port", DefaultPort)

	cfg := Config{
		Host:           v.GetString("server"),
		Port:           v.GetInt("port"),
		Username:       v.GetString("user"),
		Password:       v.GetString("password"),
		AccessToken:    v.GetString("access_token"),
		TLSSkipVerify:  v.GetBool("tls_skip_verify"),
		DialTimeout:    v.GetDuration("dial_timeout"),
		CommandTimeout: v.GetDuration("command_timeout"),
	}

	if cfg.Host == "" {
		return Config{}, &ConfigError{Reason: "IMAP_SERVER is not set or is empty"}
	}
	if cfg.Username == "" {
		return Config{}, &ConfigError{Reason: "IMAP_USER is not set or is empty"}
	}
	if cfg.Password == "" && cfg.AccessToken == "" {
		return Config{}, &ConfigError{Reason: "IMAP_PASSWORD is not set or is empty"}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, &ConfigError{Reason: fmt.Sprintf("IMAP_PORT %d is out of range", cfg.Port)}
	}

	return cfg, nil
}
