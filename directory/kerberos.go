package directory

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// performKerberosAuth performs a GSSAPI bind on a directory connection.
// BindDN doubles as the Kerberos principal; a user@REALM form fills in the
// realm when KerberosRealm is unset.
func performKerberosAuth(conn *ldap.Conn, cfg *Config, serverInfo *ServerInfo) error {
	if err := prepareKerberosConfig(cfg); err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	gssapiClient, err := createGSSAPIClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, serverInfo)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// createGSSAPIClient creates a GSSAPI client from the configured
// credentials. Priority order: credential cache, keytab, password.
func createGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	krb5confPath := cfg.KerberosConfig
	if krb5confPath == "" {
		krb5confPath = "/etc/krb5.conf"
	}
	if !fileExists(krb5confPath) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s; "+
			"create it or point KerberosConfig at a valid krb5.conf", krb5confPath)
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if defaultCCache := defaultCCachePath(); fileExists(defaultCCache) {
		return gssapi.NewClientFromCCache(defaultCCache, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, cfg.KerberosKeytab, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindDN != "" {
		if defaultKeytab := defaultKeytabPath(); fileExists(defaultKeytab) {
			return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, defaultKeytab, krb5confPath, krb5client.DisablePAFXFAST(true))
		}
	}

	if cfg.BindDN != "" && cfg.BindPassword != "" {
		return gssapi.NewClientWithPassword(cfg.BindDN, cfg.KerberosRealm, cfg.BindPassword, krb5confPath, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal constructs the directory service principal name.
// An explicit KerberosSPN overrides the ldap/<host> construction.
func buildServicePrincipal(cfg *Config, serverInfo *ServerInfo) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if serverInfo == nil || serverInfo.Host == "" {
		return "", fmt.Errorf("server host is required for service principal")
	}

	hostname := serverInfo.Host
	if colonPos := strings.Index(hostname, ":"); colonPos != -1 {
		hostname = hostname[:colonPos]
	}

	return fmt.Sprintf("ldap/%s", hostname), nil
}

// prepareKerberosConfig validates and normalizes Kerberos configuration.
func prepareKerberosConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if cfg.KerberosConfig == "" {
		cfg.KerberosConfig = "/etc/krb5.conf"
	}

	// Extract the realm from a user@REALM principal
	if cfg.KerberosRealm == "" && strings.Contains(cfg.BindDN, "@") {
		parts := strings.SplitN(cfg.BindDN, "@", 2)
		cfg.BindDN = parts[0]
		cfg.KerberosRealm = parts[1]
	}

	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required (set KerberosRealm or use a principal@REALM bind identity)")
	}
	if cfg.BindDN == "" {
		return fmt.Errorf("a principal is required for Kerberos authentication")
	}

	hasCCache := (cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache)) || fileExists(defaultCCachePath())
	hasKeytab := (cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab)) || fileExists(defaultKeytabPath())
	if !hasCCache && !hasKeytab && cfg.BindPassword == "" {
		return fmt.Errorf("no Kerberos credentials found: provide a credential cache, keytab, or password")
	}

	return nil
}

// defaultCCachePath returns the default credential cache location.
func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// defaultKeytabPath returns the default keytab location.
func defaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
