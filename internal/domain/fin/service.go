package fin

import (
	"time"

	"github.com/google/uuid"
)

// APIType discriminates which adapter talks to a payment service.
type APIType string

const (
	APITypePayPal APIType = "PAYPAL"
)

// APITypes lists every discriminator a ServiceConfig may carry.
var APITypes = []APIType{APITypePayPal}

// DefaultTokenType is used when the service does not name one.
const DefaultTokenType = "Bearer"

// ServiceConfig is the stored configuration of one payment service account.
type ServiceConfig struct {
	ID       uuid.UUID
	Name     string
	APIType  APIType
	BaseURL  string
	UseProxy bool
	Proxy    string
	Username string
	Password string
	Token    Token
}

// HasCredentials reports whether both client id and secret are set.
func (s *ServiceConfig) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// ProxyURL returns the proxy to use, or "" when requests go direct.
func (s *ServiceConfig) ProxyURL() string {
	if !s.UseProxy {
		return ""
	}
	return s.Proxy
}

// Token is the access token triad of a service. A zero Expiry means the
// token does not expire.
type Token struct {
	AccessToken string
	Type        string
	Expiry      time.Time
}

// Usable reports whether the token is present and not expired at now.
func (t Token) Usable(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || t.Expiry.After(now)
}

// AuthorizationType returns the scheme for the Authorization header.
func (t Token) AuthorizationType() string {
	if t.Type == "" {
		return DefaultTokenType
	}
	return t.Type
}
