package marklogic

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

type AuthType string

const (
	AuthDigest AuthType = "digest"
	AuthBasic  AuthType = "basic"
	AuthNone   AuthType = "none"
)

const (
	DefaultHost            = "localhost"
	DefaultStagingPort     = 8010
	DefaultModulesDatabase = "data-hub-MODULES"
	DefaultRetryCount      = 3
	DefaultRetryInterval   = 500 * time.Millisecond
	DefaultTimeout         = 5 * time.Minute
)

// Config describes the staging app server bulk calls are sent to.
type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Auth            AuthType
	ModulesDatabase string
	// SimpleSSL enables TLS without certificate verification.
	SimpleSSL     bool
	RetryCount    int
	RetryInterval time.Duration
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultStagingPort,
		Username:        "",
		Password:        "",
		Auth:            AuthDigest,
		ModulesDatabase: DefaultModulesDatabase,
		SimpleSSL:       false,
		RetryCount:      DefaultRetryCount,
		RetryInterval:   DefaultRetryInterval,
		Timeout:         DefaultTimeout,
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return xerrors.New("host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return xerrors.Errorf("invalid port %d", c.Port)
	}
	switch c.Auth {
	case AuthDigest, AuthBasic:
		if c.Username == "" {
			return xerrors.Errorf("%s authentication requires a username", c.Auth)
		}
	case AuthNone:
	default:
		return xerrors.Errorf("unknown authentication type %q, expected one of digest, basic, none", c.Auth)
	}
	if c.RetryCount < 0 {
		return xerrors.Errorf("retry count must not be negative, got %d", c.RetryCount)
	}
	return nil
}

func (c *Config) BaseURL() string {
	scheme := "http"
	if c.SimpleSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}
