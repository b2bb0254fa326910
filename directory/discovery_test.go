package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLDAPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    *ServerInfo
		wantErr bool
	}{
		{
			name: "ldap with explicit port",
			url:  "ldap://dc1.example.org:3389",
			want: &ServerInfo{Host: "dc1.example.org", Port: 3389, UseTLS: false},
		},
		{
			name: "ldap default port",
			url:  "ldap://dc1.example.org",
			want: &ServerInfo{Host: "dc1.example.org", Port: 389, UseTLS: false},
		},
		{
			name: "ldaps default port",
			url:  "ldaps://dc1.example.org",
			want: &ServerInfo{Host: "dc1.example.org", Port: 636, UseTLS: true},
		},
		{
			name: "ldaps with path component stripped",
			url:  "ldaps://dc1.example.org:636/dc=example,dc=org",
			want: &ServerInfo{Host: "dc1.example.org", Port: 636, UseTLS: true},
		},
		{
			name:    "empty URL",
			url:     "",
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			url:     "http://dc1.example.org",
			wantErr: true,
		},
		{
			name:    "bad port",
			url:     "ldap://dc1.example.org:notaport",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLDAPURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Port, got.Port)
			assert.Equal(t, tt.want.UseTLS, got.UseTLS)
			assert.Equal(t, "config", got.Source)
		})
	}
}

func TestServerInfoToURL(t *testing.T) {
	assert.Equal(t, "ldap://dc1.example.org:389",
		ServerInfoToURL(&ServerInfo{Host: "dc1.example.org", Port: 389}))
	assert.Equal(t, "ldaps://dc1.example.org:636",
		ServerInfoToURL(&ServerInfo{Host: "dc1.example.org", Port: 636, UseTLS: true}))
}

func TestValidateServerInfo(t *testing.T) {
	assert.Error(t, ValidateServerInfo(nil))
	assert.Error(t, ValidateServerInfo(&ServerInfo{Host: "", Port: 389}))
	assert.Error(t, ValidateServerInfo(&ServerInfo{Host: "h", Port: 0}))
	assert.Error(t, ValidateServerInfo(&ServerInfo{Host: "h", Port: 70000}))
	assert.NoError(t, ValidateServerInfo(&ServerInfo{Host: "h", Port: 389}))
}

func TestSortServersByPriority(t *testing.T) {
	servers := []*ServerInfo{
		{Host: "c", Priority: 10, Weight: 50},
		{Host: "a", Priority: 0, Weight: 10},
		{Host: "b", Priority: 0, Weight: 90},
	}

	sortServersByPriority(servers)

	assert.Equal(t, "b", servers[0].Host) // priority 0, heaviest weight first
	assert.Equal(t, "a", servers[1].Host)
	assert.Equal(t, "c", servers[2].Host)
}

func TestFallbackServers(t *testing.T) {
	servers := fallbackServers("example.org")
	require.Len(t, servers, 2)
	assert.True(t, servers[0].UseTLS)
	assert.Equal(t, 636, servers[0].Port)
	assert.Equal(t, 389, servers[1].Port)
	assert.Equal(t, "fallback", servers[0].Source)
}
