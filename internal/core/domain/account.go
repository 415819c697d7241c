package domain

import (
	"fmt"
	"net/url"
	"strconv"
)

// Account is a provisioned mail account.
type Account struct {
	// ID is the stable account identifier.
	ID string

	// Name is the primary address of the account.
	Name string

	// Server is the name of the server hosting the account's mailbox.
	Server string
}

// ServerMode describes which protocols a server accepts.
type ServerMode string

// Server modes.
const (
	ServerModeHTTP     ServerMode = "http"
	ServerModeHTTPS    ServerMode = "https"
	ServerModeBoth     ServerMode = "both"
	ServerModeMixed    ServerMode = "mixed"
	ServerModeRedirect ServerMode = "redirect"
)

// IsValid returns true if the mode is recognised.
func (m ServerMode) IsValid() bool {
	switch m {
	case ServerModeHTTP, ServerModeHTTPS, ServerModeBoth, ServerModeMixed, ServerModeRedirect:
		return true
	default:
		return false
	}
}

// Server is a peer in the cluster.
type Server struct {
	// Name identifies the server; accounts reference it.
	Name string

	// Host is the reachable host name. Defaults to Name.
	Host string

	// Mode selects the scheme used to reach the server.
	Mode ServerMode

	// Port is the plain HTTP port (0 means 80).
	Port int

	// SSLPort is the HTTPS port (0 means 443).
	SSLPort int
}

// BaseURL returns the scheme://host:port the server is reachable at.
// HTTPS is preferred unless the server only speaks plain HTTP.
func (s Server) BaseURL() (string, error) {
	host := s.Host
	if host == "" {
		host = s.Name
	}
	if host == "" {
		return "", fmt.Errorf("%w: server has no host", ErrInvalidInput)
	}

	scheme, port := "https", s.SSLPort
	if port == 0 {
		port = 443
	}
	if s.Mode == ServerModeHTTP {
		scheme, port = "http", s.Port
		if port == 0 {
			port = 80
		}
	}

	u := url.URL{Scheme: scheme, Host: host + ":" + strconv.Itoa(port)}
	return u.String(), nil
}
