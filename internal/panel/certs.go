package panel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/asterhall/alarmbridge/internal/settings"
)

// StoreCertificates loads TLS material from PEM files whose paths are
// kept in the settings store. Paths are re-read on every connection
// attempt, so rotated certificates take effect on the next reconnect.
type StoreCertificates struct {
	store settings.Store
}

// NewStoreCertificates creates a settings-backed certificate provider.
func NewStoreCertificates(store settings.Store) *StoreCertificates {
	return &StoreCertificates{store: store}
}

// ClientTLS implements CertificateProvider.
func (p *StoreCertificates) ClientTLS(ctx context.Context) (*tls.Config, error) {
	caPath, err := p.store.GetString(ctx, settings.KeyTLSCACert, "")
	if err != nil {
		return nil, fmt.Errorf("resolving CA certificate path: %w", err)
	}
	certPath, err := p.store.GetString(ctx, settings.KeyTLSClientCert, "")
	if err != nil {
		return nil, fmt.Errorf("resolving client certificate path: %w", err)
	}
	keyPath, err := p.store.GetString(ctx, settings.KeyTLSClientKey, "")
	if err != nil {
		return nil, fmt.Errorf("resolving client key path: %w", err)
	}
	if caPath == "" || certPath == "" || keyPath == "" {
		return nil, fmt.Errorf("%w: TLS certificate paths not configured", ErrConnectionFailed)
	}

	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("%w: CA file %q holds no certificates", ErrConnectionFailed, caPath)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading client key pair: %w", err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
