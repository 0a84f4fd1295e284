// Package client is the command-line client of the credential service. It
// calls the HTTP API, prompts for secrets without echo and keeps the issued
// token and cookies in a local state file between invocations.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns an http.Client. When caPath is set, the server
// certificate must chain to that CA.
func NewHTTPClient(caPath string) (*http.Client, error) {
	if caPath == "" {
		return &http.Client{Timeout: DefaultTimeout}, nil
	}

	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs:    caPool,
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{Transport: transport, Timeout: DefaultTimeout}, nil
}
