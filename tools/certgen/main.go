// Package main generates a development Certificate Authority and a server
// certificate signed by it, writing them under the "certs" directory.
// An existing CA in that directory is reused so clients that already trust
// it keep working.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/credkeeper/internal/certgen"
)

func main() {
	var (
		dir   string
		hosts string
	)
	flag.StringVar(&dir, "dir", "certs", "output directory")
	flag.StringVar(&hosts, "hosts", "localhost,127.0.0.1", "comma-separated server host names and IPs")
	flag.Parse()

	if err := run(dir, strings.Split(hosts, ",")); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✅ Certificates generated into ./%s\n", dir)
}

// run writes ca.crt, ca.key, server.crt and server.key into dir.
func run(dir string, hosts []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if errors.Is(err, fs.ErrNotExist) {
		cert, key, genErr := certgen.GenerateCA("credkeeper dev CA")
		if genErr != nil {
			return genErr
		}
		keyPEM, encErr := certgen.EncodeKey(key)
		if encErr != nil {
			return encErr
		}
		if err := certgen.WriteFile(caCertPath, certgen.EncodeCertificate(cert.Raw), 0o644); err != nil {
			return err
		}
		if err := certgen.WriteFile(caKeyPath, keyPEM, 0o600); err != nil {
			return err
		}
		caCert, caKey, err = cert, key, nil
	}
	if err != nil {
		return err
	}

	var cleaned []string
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			cleaned = append(cleaned, h)
		}
	}
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(cleaned, caCert, caKey)
	if err != nil {
		return err
	}
	if err := certgen.WriteFile(filepath.Join(dir, "server.crt"), certPEM, 0o644); err != nil {
		return err
	}
	return certgen.WriteFile(filepath.Join(dir, "server.key"), keyPEM, 0o600)
}
