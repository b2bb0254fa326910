package directory

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// srvDiscovery resolves directory servers for a domain via DNS SRV records.
type srvDiscovery struct {
	resolver *net.Resolver
}

func newSRVDiscovery() *srvDiscovery {
	return &srvDiscovery{resolver: net.DefaultResolver}
}

// DiscoverServers finds directory servers for a domain. LDAPS records are
// preferred; when no SRV records exist at all the domain itself is used on
// the standard ports.
func (d *srvDiscovery) DiscoverServers(ctx context.Context, domain string) ([]*ServerInfo, error) {
	if domain == "" {
		return nil, fmt.Errorf("domain cannot be empty")
	}

	services := []struct {
		name   string
		useTLS bool
	}{
		{"_ldaps._tcp." + domain, true},
		{"_ldap._tcp." + domain, false},
	}

	var servers []*ServerInfo
	for _, svc := range services {
		found, err := d.lookupSRV(ctx, svc.name, svc.useTLS)
		if err != nil {
			tflog.SubsystemDebug(ctx, "directory", "SRV lookup failed, trying next service", map[string]any{
				"service": svc.name,
				"error":   err.Error(),
			})
			continue
		}
		servers = append(servers, found...)

		// LDAPS servers found, no need to look further
		if svc.useTLS && len(found) > 0 {
			break
		}
	}

	if len(servers) == 0 {
		tflog.SubsystemDebug(ctx, "directory", "no SRV records found, using fallback servers", map[string]any{
			"domain": domain,
		})
		return fallbackServers(domain), nil
	}

	sortServersByPriority(servers)
	return servers, nil
}

// lookupSRV performs an SRV record lookup for one service name.
func (d *srvDiscovery) lookupSRV(ctx context.Context, service string, useTLS bool) ([]*ServerInfo, error) {
	_, records, err := d.resolver.LookupSRV(ctx, "", "", service)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup failed for %s: %w", service, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records found for %s", service)
	}

	servers := make([]*ServerInfo, 0, len(records))
	for _, srv := range records {
		servers = append(servers, &ServerInfo{
			Host:     strings.TrimSuffix(srv.Target, "."),
			Port:     int(srv.Port),
			UseTLS:   useTLS,
			Priority: int(srv.Priority),
			Weight:   int(srv.Weight),
			Source:   "srv",
		})
	}

	return servers, nil
}

// fallbackServers builds the standard-port servers used when SRV discovery
// comes up empty.
func fallbackServers(domain string) []*ServerInfo {
	return []*ServerInfo{
		{Host: domain, Port: 636, UseTLS: true, Priority: 0, Weight: 100, Source: "fallback"},
		{Host: domain, Port: 389, UseTLS: false, Priority: 1, Weight: 100, Source: "fallback"},
	}
}

// sortServersByPriority orders servers by SRV priority, then descending
// weight within a priority, per RFC 2782.
func sortServersByPriority(servers []*ServerInfo) {
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Priority != servers[j].Priority {
			return servers[i].Priority < servers[j].Priority
		}
		return servers[i].Weight > servers[j].Weight
	})
}

// ValidateServerInfo validates server information.
func ValidateServerInfo(server *ServerInfo) error {
	if server == nil {
		return fmt.Errorf("server info cannot be nil")
	}
	if server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", server.Port)
	}
	return nil
}

// ServerInfoToURL converts a ServerInfo to an LDAP URL.
func ServerInfoToURL(server *ServerInfo) string {
	scheme := "ldap"
	if server.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, server.Host, server.Port)
}

// ParseLDAPURL parses an ldap:// or ldaps:// URL into a ServerInfo.
func ParseLDAPURL(url string) (*ServerInfo, error) {
	if url == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}

	var useTLS bool
	switch {
	case strings.HasPrefix(url, "ldaps://"):
		useTLS = true
		url = strings.TrimPrefix(url, "ldaps://")
	case strings.HasPrefix(url, "ldap://"):
		url = strings.TrimPrefix(url, "ldap://")
	default:
		return nil, fmt.Errorf("unsupported scheme, must be ldap:// or ldaps://")
	}

	// Drop any path component
	if idx := strings.Index(url, "/"); idx != -1 {
		url = url[:idx]
	}

	host := url
	port := 389
	if useTLS {
		port = 636
	}

	if idx := strings.LastIndex(url, ":"); idx != -1 {
		host = url[:idx]
		parsed, err := strconv.Atoi(url[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %s", url[idx+1:])
		}
		port = parsed
	}

	server := &ServerInfo{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		Weight: 100,
		Source: "config",
	}

	return server, ValidateServerInfo(server)
}
