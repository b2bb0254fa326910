package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// maxAuthAge is how long a bound session is trusted before re-binding.
const maxAuthAge = 5 * time.Minute

// pooledConn is one directory session owned by the pool.
type pooledConn struct {
	conn          *ldap.Conn
	lastUsed      time.Time
	healthy       bool
	authenticated bool
	authTime      time.Time
	serverInfo    *ServerInfo
	returnToPool  func(*pooledConn)
}

// Close returns the session to its pool.
func (pc *pooledConn) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

// Conn exposes the underlying transport session.
func (pc *pooledConn) Conn() *ldap.Conn {
	return pc.conn
}

// pool manages a bounded set of independently bound directory sessions.
type pool struct {
	config      *Config
	servers     []*ServerInfo
	connections chan *pooledConn
	mu          sync.RWMutex
	closed      bool
	discovery   *srvDiscovery

	// Statistics
	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time

	// Health checking
	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

// newPool creates a session pool for the given configuration. The config
// must already have defaults applied and be validated.
func newPool(ctx context.Context, config *Config) (*pool, error) {
	p := &pool{
		config:      config,
		connections: make(chan *pooledConn, config.MaxConns),
		discovery:   newSRVDiscovery(),
		startTime:   time.Now(),
		healthStop:  make(chan struct{}),
	}

	if err := p.discoverServers(ctx); err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	if config.HealthCheck > 0 {
		p.startHealthChecker()
	}

	tflog.SubsystemDebug(ctx, Subsystem, "session pool created", map[string]any{
		"server_count": len(p.servers),
		"max_conns":    config.MaxConns,
		"auth_method":  config.GetAuthMethod().String(),
	})
	return p, nil
}

// discoverServers resolves directory servers from the configured URLs or
// via SRV discovery of the configured domain.
func (p *pool) discoverServers(ctx context.Context) error {
	var servers []*ServerInfo

	if len(p.config.URLs) > 0 {
		for _, url := range p.config.URLs {
			server, err := ParseLDAPURL(url)
			if err != nil {
				return fmt.Errorf("invalid LDAP URL %s: %w", url, err)
			}
			servers = append(servers, server)
		}
	} else if p.config.Domain != "" {
		discoverCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		discovered, err := p.discovery.DiscoverServers(discoverCtx, p.config.Domain)
		if err != nil {
			return fmt.Errorf("SRV discovery failed: %w", err)
		}
		servers = discovered
	} else {
		return errors.New("either URLs or Domain must be specified")
	}

	if len(servers) == 0 {
		return errors.New("no servers discovered")
	}

	p.mu.Lock()
	p.servers = servers
	p.mu.Unlock()
	return nil
}

// Get retrieves a bound session from the pool, creating one when none is
// idle.
func (p *pool) Get(ctx context.Context) (*pooledConn, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New("session pool is closed")
	}
	p.mu.RUnlock()

	select {
	case conn := <-p.connections:
		if p.isConnectionHealthy(conn) {
			if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
				if err := p.authenticateConnection(conn); err != nil {
					p.closeConnection(conn)
					break
				}
			}
			conn.lastUsed = time.Now()
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		}
		p.closeConnection(conn)
	default:
		// No idle sessions, fall through to create one
	}

	return p.createConnection(ctx)
}

// createConnection dials a new session, cycling servers with backoff.
func (p *pool) createConnection(ctx context.Context) (*pooledConn, error) {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		for _, server := range p.servers {
			conn, err := p.createSingleConnection(server)
			if err != nil {
				lastErr = err
				atomic.AddInt64(&p.totalErrors, 1)
				continue
			}

			atomic.AddInt64(&p.totalCreated, 1)
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		}

		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.config.BackoffFactor), p.config.MaxBackoff)
			}
		}
	}

	return nil, NewConnectionError("failed to create session after retries", true, lastErr)
}

// createSingleConnection dials and binds one server.
func (p *pool) createSingleConnection(server *ServerInfo) (*pooledConn, error) {
	url := ServerInfoToURL(server)

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(p.config.TLSConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && p.config.UseTLS && !p.config.SkipTLS {
			err = conn.StartTLS(p.config.TLSConfig)
		}
	}

	if err != nil {
		return nil, NewConnectionError(fmt.Sprintf("failed to connect to %s", url), true, err)
	}

	conn.SetTimeout(p.config.Timeout)

	pc := &pooledConn{
		conn:         conn,
		lastUsed:     time.Now(),
		healthy:      true,
		serverInfo:   server,
		returnToPool: p.returnConnection,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(pc); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate session to %s: %w", url, err)
		}
	}

	return pc, nil
}

// authenticateConnection binds a session using the configured method.
func (p *pool) authenticateConnection(pc *pooledConn) error {
	if pc == nil || pc.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	var err error
	switch p.config.GetAuthMethod() {
	case AuthMethodSimpleBind:
		err = pc.conn.Bind(p.config.BindDN, p.config.BindPassword)
	case AuthMethodKerberos:
		err = performKerberosAuth(pc.conn, p.config, pc.serverInfo)
	case AuthMethodAnonymous:
		err = pc.conn.UnauthenticatedBind("")
	}

	if err != nil {
		pc.authenticated = false
		pc.authTime = time.Time{}
		return wrapOperationError("bind", p.config.BindDN, err)
	}

	pc.authenticated = true
	pc.authTime = time.Now()
	return nil
}

// needsReAuthentication reports whether the session's bind is stale.
func (p *pool) needsReAuthentication(pc *pooledConn) bool {
	if pc == nil || !pc.authenticated {
		return true
	}
	return time.Since(pc.authTime) > maxAuthAge
}

// returnConnection puts a session back, discarding it when the pool is
// closed, full, or the session is stale.
func (p *pool) returnConnection(pc *pooledConn) {
	if pc == nil {
		return
	}

	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.closeConnection(pc)
		return
	}

	if p.isConnectionHealthy(pc) && time.Since(pc.lastUsed) < p.config.MaxIdleTime {
		select {
		case p.connections <- pc:
		default:
			p.closeConnection(pc)
		}
	} else {
		p.closeConnection(pc)
	}
}

// isConnectionHealthy checks liveness without a round-trip.
func (p *pool) isConnectionHealthy(pc *pooledConn) bool {
	if pc == nil || pc.conn == nil || !pc.healthy {
		return false
	}
	if time.Since(pc.lastUsed) > p.config.MaxIdleTime {
		return false
	}
	if p.config.HasAuthentication() && !pc.authenticated {
		return false
	}
	return true
}

func (p *pool) closeConnection(pc *pooledConn) {
	if pc != nil && pc.conn != nil {
		pc.conn.Close()
		pc.healthy = false
		pc.authenticated = false
		pc.authTime = time.Time{}
	}
}

// Close closes all sessions and shuts down the pool.
func (p *pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	close(p.connections)
	for conn := range p.connections {
		p.closeConnection(conn)
	}

	return nil
}

// Stats returns pool statistics.
func (p *pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Total:   len(p.connections),
		Active:  atomic.LoadInt64(&p.activeConns),
		Idle:    len(p.connections),
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

// startHealthChecker starts the periodic health checker.
func (p *pool) startHealthChecker() {
	p.healthTicker = time.NewTicker(p.config.HealthCheck)

	p.healthWg.Go(func() {
		for {
			select {
			case <-p.healthTicker.C:
				p.performHealthCheck()
			case <-p.healthStop:
				return
			}
		}
	})
}

// performHealthCheck probes a few idle sessions with a root DSE read.
func (p *pool) performHealthCheck() {
	var toCheck []*pooledConn

checkLoop:
	for range 3 {
		select {
		case conn := <-p.connections:
			toCheck = append(toCheck, conn)
		default:
			break checkLoop
		}
	}

	for _, conn := range toCheck {
		if p.testConnection(conn) {
			atomic.AddInt64(&p.activeConns, 1)
			p.returnConnection(conn)
		} else {
			p.closeConnection(conn)
		}
	}
}

// testConnection verifies a session with a minimal search.
func (p *pool) testConnection(pc *pooledConn) bool {
	if pc == nil || pc.conn == nil {
		return false
	}

	if p.config.HasAuthentication() && p.needsReAuthentication(pc) {
		if err := p.authenticateConnection(pc); err != nil {
			return false
		}
	}

	searchReq := ldap.NewSearchRequest(
		"", // Root DSE
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		[]string{"supportedLDAPVersion"},
		nil,
	)

	if _, err := pc.conn.Search(searchReq); err != nil {
		pc.authenticated = false
		pc.authTime = time.Time{}
		return false
	}

	return true
}
