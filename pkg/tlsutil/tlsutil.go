// Package tlsutil builds client tls.Config values for the HTTP and WebSocket
// transports from file-based settings.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/MailerSuite/Final-sub009/errors"
)

// ClientConfig describes how the client verifies the server and, optionally,
// authenticates itself with a certificate.
type ClientConfig struct {
	// CAFiles are trusted in addition to the system pool.
	CAFiles []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`

	// MinVersion is "1.2" or "1.3"; anything else means 1.2.
	MinVersion string `json:"min_version,omitempty" yaml:"min_version,omitempty"`

	ServerName string `json:"server_name,omitempty" yaml:"server_name,omitempty"`

	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`

	// CertFile and KeyFile enable mTLS when both are set.
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// IsZero reports whether no TLS setting was provided.
func (c ClientConfig) IsZero() bool {
	return len(c.CAFiles) == 0 && c.MinVersion == "" && c.ServerName == "" &&
		!c.InsecureSkipVerify && c.CertFile == "" && c.KeyFile == ""
}

// MTLSEnabled reports whether a client certificate is configured.
func (c ClientConfig) MTLSEnabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// LoadClientTLSConfig creates a tls.Config for HTTP/WebSocket clients.
// Always uses system CA bundle first, CAFiles are additional trusted CAs
func LoadClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
		ServerName: cfg.ServerName,
	}

	// Start with system CA pool
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil",
				"LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile),
			)
		}
	}

	tlsConfig.RootCAs = rootCAs

	// Operators opt into this explicitly through config.
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if !cfg.MTLSEnabled() {
		return tlsConfig, nil
	}

	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "tlsutil", "LoadClientTLSConfig",
			"mTLS requires both cert_file and key_file")
	}

	clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
	}
	tlsConfig.Certificates = []tls.Certificate{clientCert}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	case "1.2":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS12
	}
}
