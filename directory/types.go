package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// Config holds configuration for a directory connection. Construct it
// explicitly and pass it to Open; there is no package-level singleton. Zero
// fields are filled in from the default struct tags by Open.
type Config struct {
	// Connection settings
	URLs    []string      // Direct LDAP URLs (overrides domain discovery)
	Domain  string        // Domain for SRV discovery when URLs is empty
	Timeout time.Duration `default:"30s"` // Per-operation network timeout

	// Authentication settings
	BindDN       string // DN (or UPN) used for the bind
	BindPassword string // Password for simple bind

	// Kerberos settings (GSSAPI bind is used when Realm is set)
	KerberosRealm  string // Kerberos realm
	KerberosKeytab string // Path to a keytab file
	KerberosCCache string // Path to a credential cache
	KerberosConfig string // Path to krb5.conf
	KerberosSPN    string // Explicit service principal, overrides ldap/<host>

	// TLS settings
	TLSConfig *tls.Config // Custom TLS configuration
	UseTLS    bool        `default:"true"` // Upgrade plain connections with StartTLS
	SkipTLS   bool        // Skip TLS entirely (not recommended)

	// Character set for attribute values on the wire. Values are transcoded
	// to this encoding on the way out and back to UTF-8 on the way in;
	// binary attribute values always pass through untouched.
	Charset string `default:"utf-8"`

	// Pool settings
	MaxConns    int           `default:"10"`  // Maximum pooled sessions
	MaxIdleTime time.Duration `default:"5m"`  // Idle time before a session is discarded
	HealthCheck time.Duration `default:"30s"` // Health check interval, 0 disables

	// Retry settings for retryable result codes
	MaxRetries     int           `default:"3"`
	InitialBackoff time.Duration `default:"500ms"`
	MaxBackoff     time.Duration `default:"30s"`
	BackoffFactor  float64       `default:"2.0"`
}

// MaxPoolLimit is the maximum allowed sessions in a pool. Keeps a
// misconfigured pool well below typical directory-server connection limits.
const MaxPoolLimit = 100

// ApplyDefaults fills zero fields from the default struct tags.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if c.TLSConfig == nil {
		c.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return nil
}

// Validate checks the configuration for values the pool cannot work with.
func (c *Config) Validate() error {
	if len(c.URLs) == 0 && c.Domain == "" {
		return errors.New("either URLs or Domain must be specified")
	}
	if c.MaxConns <= 0 {
		return errors.New("MaxConns must be positive")
	}
	if c.MaxConns > MaxPoolLimit {
		return fmt.Errorf("MaxConns too high (max %d)", MaxPoolLimit)
	}
	if c.MaxIdleTime <= 0 {
		return errors.New("MaxIdleTime must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("Timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}
	if c.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}
	if _, err := lookupCharset(c.Charset); err != nil {
		return err
	}
	return nil
}

// HasAuthentication reports whether any bind method is configured.
func (c *Config) HasAuthentication() bool {
	hasSimple := c.BindDN != "" && c.BindPassword != ""
	hasKerberos := c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.BindDN != "")
	return hasSimple || hasKerberos
}

// AuthMethod defines bind method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // DN/password bind
	AuthMethodKerberos                     // GSSAPI bind
	AuthMethodAnonymous                    // No credentials
)

// String returns the string representation of the bind method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	case AuthMethodAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the bind method from the configuration.
// Kerberos takes precedence when a realm is configured.
func (c *Config) GetAuthMethod() AuthMethod {
	if c.KerberosRealm != "" {
		return AuthMethodKerberos
	}
	if c.BindDN != "" {
		return AuthMethodSimpleBind
	}
	return AuthMethodAnonymous
}

// Scope defines the breadth of a search below its base.
type Scope int

const (
	ScopeSubtree  Scope = iota // The base and everything below it
	ScopeOneLevel              // Direct children of the base only
)

// String returns the string representation of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeSubtree:
		return "subtree"
	case ScopeOneLevel:
		return "onelevel"
	default:
		return "unknown"
	}
}

// ModOp is a modify-operation type.
type ModOp int

const (
	ModReplace ModOp = iota // Replace all values of the attribute
	ModDelete               // Remove the attribute entirely
)

// String returns the string representation of the modify operation.
func (m ModOp) String() string {
	switch m {
	case ModReplace:
		return "replace"
	case ModDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Attribute is one named attribute with its wire values, as supplied to Add.
// Binary marks values that must bypass charset transcoding.
type Attribute struct {
	Name   string
	Values [][]byte
	Binary bool
}

// Modification is one entry in a modify list. Values is nil for ModDelete.
type Modification struct {
	Op     ModOp
	Name   string
	Values [][]byte
	Binary bool
}

// SearchRequest encapsulates directory search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	Filter     string
	Attributes []string
	// BinaryAttributes lists requested attributes whose values must not be
	// charset-transcoded on the way back.
	BinaryAttributes []string
	SizeLimit        int
}

// RawEntry is one undecoded search result: the entry identifier plus the
// wire values of every returned attribute.
type RawEntry struct {
	DN    string
	Attrs map[string][][]byte
}

// Conn is the directory-connection capability consumed by the ORM core.
// Implementations must be safe for concurrent use; the pooled implementation
// hands each operation an independently bound session.
type Conn interface {
	// Add creates an entry. Fails with an already-exists condition when the
	// DN is taken (check with IsAlreadyExists).
	Add(ctx context.Context, dn string, attrs []Attribute) error

	// Delete removes an entry. Fails with a not-found condition when the DN
	// is absent (check with IsNotFound).
	Delete(ctx context.Context, dn string) error

	// Modify applies an ordered modification list to an entry.
	Modify(ctx context.Context, dn string, mods []Modification) error

	// Rename changes the entry's RDN in place, deleting the old RDN value.
	Rename(ctx context.Context, dn, newRDN string) error

	// Search runs a search and materializes every result. A missing base
	// surfaces as a not-found condition; callers decide whether that means
	// an empty result.
	Search(ctx context.Context, req *SearchRequest) ([]RawEntry, error)

	// Ping verifies the connection by reading the root DSE.
	Ping(ctx context.Context) error

	// Stats returns pool statistics.
	Stats() PoolStats

	// Close tears down the pool and every session in it.
	Close() error
}

// PoolStats provides statistics about the session pool.
type PoolStats struct {
	Total     int           // Pooled sessions
	Active    int64         // Sessions currently checked out
	Idle      int           // Idle sessions
	Created   int64         // Total sessions created
	Errors    int64         // Total connection errors
	Uptime    time.Duration // Pool uptime
}

// ServerInfo describes one discovered or configured directory server.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-establishment errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
