package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// noAttributes is the OID requesting that a search return no attribute
// values, only entry names. Used by count-style searches.
const noAttributes = "1.1"

// Pooled is the pooled Conn implementation. Every operation checks out an
// independently bound session, so a Pooled value is safe for concurrent
// use. Construct with Open, share by reference for the process lifetime,
// and Close at shutdown.
type Pooled struct {
	pool    *pool
	config  *Config
	charset *charsetCodec
}

var _ Conn = (*Pooled)(nil)

// Open applies defaults, validates the configuration, builds the session
// pool, and verifies connectivity and the configured bind with one
// round-trip. Bad credentials surface with the authentication category and
// an unreachable server with the connection category.
func Open(ctx context.Context, config *Config) (*Pooled, error) {
	if config == nil {
		config = &Config{}
	}
	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	charset, err := lookupCharset(config.Charset)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := newPool(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session pool: %w", err)
	}

	c := &Pooled{pool: p, config: config, charset: charset}
	if err := c.Ping(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}

	tflog.SubsystemInfo(ctx, Subsystem, "directory connection established", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"auth_method": config.GetAuthMethod().String(),
		"charset":     config.Charset,
	})
	return c, nil
}

// Close tears down the pool and every session in it.
func (c *Pooled) Close() error {
	return c.pool.Close()
}

// Stats returns pool statistics.
func (c *Pooled) Stats() PoolStats {
	return c.pool.Stats()
}

// Ping verifies the connection by reading the root DSE.
func (c *Pooled) Ping(ctx context.Context) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return wrapOperationError("bind", c.config.BindDN, err)
	}
	defer conn.Close()

	searchReq := ldap.NewSearchRequest(
		"", // Root DSE
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"supportedLDAPVersion"},
		nil,
	)

	if _, err := conn.Conn().Search(searchReq); err != nil {
		return wrapOperationError("bind", c.config.BindDN, err)
	}
	return nil
}

// Add creates a new entry with the given ordered attribute list.
func (c *Pooled) Add(ctx context.Context, dn string, attrs []Attribute) error {
	return LogOperation(ctx, "add", map[string]any{
		"dn":         dn,
		"attr_count": len(attrs),
	}, func() error {
		wireDN, err := c.charset.encodeString(dn)
		if err != nil {
			return err
		}

		req := ldap.NewAddRequest(wireDN, nil)
		for _, attr := range attrs {
			values, err := c.encodeValues(attr.Values, attr.Binary)
			if err != nil {
				return err
			}
			req.Attribute(attr.Name, values)
		}

		return wrapOperationError("add", dn, c.withRetry(ctx, func(conn *ldap.Conn) error {
			return conn.Add(req)
		}))
	})
}

// Delete removes the entry with the given DN.
func (c *Pooled) Delete(ctx context.Context, dn string) error {
	return LogOperation(ctx, "delete", map[string]any{
		"dn": dn,
	}, func() error {
		wireDN, err := c.charset.encodeString(dn)
		if err != nil {
			return err
		}

		req := ldap.NewDelRequest(wireDN, nil)
		return wrapOperationError("delete", dn, c.withRetry(ctx, func(conn *ldap.Conn) error {
			return conn.Del(req)
		}))
	})
}

// Modify applies an ordered modification list to the entry.
func (c *Pooled) Modify(ctx context.Context, dn string, mods []Modification) error {
	return LogOperation(ctx, "modify", map[string]any{
		"dn":        dn,
		"mod_count": len(mods),
	}, func() error {
		wireDN, err := c.charset.encodeString(dn)
		if err != nil {
			return err
		}

		req := ldap.NewModifyRequest(wireDN, nil)
		for _, mod := range mods {
			switch mod.Op {
			case ModReplace:
				values, err := c.encodeValues(mod.Values, mod.Binary)
				if err != nil {
					return err
				}
				req.Replace(mod.Name, values)
			case ModDelete:
				req.Delete(mod.Name, nil)
			default:
				return fmt.Errorf("unsupported modify operation: %s", mod.Op)
			}
		}

		return wrapOperationError("modify", dn, c.withRetry(ctx, func(conn *ldap.Conn) error {
			return conn.Modify(req)
		}))
	})
}

// Rename changes the entry's RDN in place, removing the old RDN value and
// keeping the entry under the same parent.
func (c *Pooled) Rename(ctx context.Context, dn, newRDN string) error {
	return LogOperation(ctx, "rename", map[string]any{
		"dn":      dn,
		"new_rdn": newRDN,
	}, func() error {
		wireDN, err := c.charset.encodeString(dn)
		if err != nil {
			return err
		}
		wireRDN, err := c.charset.encodeString(newRDN)
		if err != nil {
			return err
		}

		req := ldap.NewModifyDNRequest(wireDN, wireRDN, true, "")
		return wrapOperationError("rename", dn, c.withRetry(ctx, func(conn *ldap.Conn) error {
			return conn.ModifyDN(req)
		}))
	})
}

// Search runs a search and materializes every result. An empty attribute
// list requests no values at all, which is how count-style queries avoid
// transferring attribute data.
func (c *Pooled) Search(ctx context.Context, req *SearchRequest) ([]RawEntry, error) {
	if req == nil {
		return nil, fmt.Errorf("search request cannot be nil")
	}

	var entries []RawEntry
	err := LogOperation(ctx, "search", map[string]any{
		"base_dn": req.BaseDN,
		"scope":   req.Scope.String(),
		"filter":  req.Filter,
	}, func() error {
		wireBase, err := c.charset.encodeString(req.BaseDN)
		if err != nil {
			return err
		}
		wireFilter, err := c.charset.encodeString(req.Filter)
		if err != nil {
			return err
		}

		attrs := req.Attributes
		if len(attrs) == 0 {
			attrs = []string{noAttributes}
		}

		ldapReq := ldap.NewSearchRequest(
			wireBase,
			ldapScope(req.Scope),
			ldap.NeverDerefAliases,
			req.SizeLimit,
			0,
			false,
			wireFilter,
			attrs,
			nil,
		)

		var result *ldap.SearchResult
		searchErr := c.withRetry(ctx, func(conn *ldap.Conn) error {
			var err error
			result, err = conn.Search(ldapReq)
			return err
		})
		if searchErr != nil {
			return wrapOperationError("search", req.BaseDN, searchErr)
		}

		entries, err = c.decodeEntries(result.Entries, req.BinaryAttributes)
		if err != nil {
			return err
		}

		tflog.SubsystemDebug(ctx, Subsystem, "search materialized", map[string]any{
			"entries_found": len(entries),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// encodeValues transcodes attribute values for the wire. Binary values
// pass through unmodified.
func (c *Pooled) encodeValues(values [][]byte, binary bool) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if binary {
			out = append(out, string(v))
			continue
		}
		encoded, err := c.charset.encodeValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, string(encoded))
	}
	return out, nil
}

// decodeEntries converts transport entries to raw entries, transcoding
// every value back to UTF-8 except those of binary attributes.
func (c *Pooled) decodeEntries(entries []*ldap.Entry, binaryAttrs []string) ([]RawEntry, error) {
	binary := make(map[string]bool, len(binaryAttrs))
	for _, name := range binaryAttrs {
		binary[name] = true
	}

	out := make([]RawEntry, 0, len(entries))
	for _, entry := range entries {
		dn, err := c.charset.decodeString(entry.DN)
		if err != nil {
			return nil, err
		}

		attrs := make(map[string][][]byte, len(entry.Attributes))
		for _, attr := range entry.Attributes {
			values := make([][]byte, 0, len(attr.ByteValues))
			for _, v := range attr.ByteValues {
				if binary[attr.Name] {
					values = append(values, v)
					continue
				}
				decoded, err := c.charset.decodeValue(v)
				if err != nil {
					return nil, err
				}
				values = append(values, decoded)
			}
			attrs[attr.Name] = values
		}

		out = append(out, RawEntry{DN: dn, Attrs: attrs})
	}
	return out, nil
}

// ldapScope maps the package scope to the transport's scope constant.
func ldapScope(s Scope) int {
	if s == ScopeOneLevel {
		return ldap.ScopeSingleLevel
	}
	return ldap.ScopeWholeSubtree
}

// withRetry executes an operation on a pooled session, retrying retryable
// failures with exponential backoff.
func (c *Pooled) withRetry(ctx context.Context, operation func(*ldap.Conn) error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		conn, err := c.pool.Get(ctx)
		if err != nil {
			return err
		}

		err = operation(conn.Conn())
		conn.Close()
		if err == nil {
			if attempt > 0 {
				tflog.SubsystemDebug(ctx, Subsystem, "operation succeeded after retries", map[string]any{
					"attempts": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return err
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	return NewConnectionError("operation failed after retries", false, lastErr)
}
