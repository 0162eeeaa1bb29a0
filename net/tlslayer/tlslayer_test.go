package tlslayer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func selfSignedCert(t *testing.T, commonName string, notAfter time.Time) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{commonName},
		IsCA:         true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func TestVerificationErrorFormat(t *testing.T) {
	err := &VerificationError{Subject: "mail.example.com", Reason: "expired"}
	got := err.Error()
	if got == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestDefaultVerifierRejectsEmptyChain(t *testing.T) {
	v := &DefaultVerifier{}
	if err := v.Verify(nil, "mail.example.com"); err == nil {
		t.Fatal("expected an error for an empty chain")
	}
}

func TestDefaultVerifierAcceptsTrustedSelfSignedLeaf(t *testing.T) {
	cert := selfSignedCert(t, "mail.example.com", time.Now().Add(24*time.Hour))
	roots := x509.NewCertPool()
	roots.AddCert(cert)

	v := &DefaultVerifier{Roots: roots}
	if err := v.Verify([]*x509.Certificate{cert}, "mail.example.com"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDefaultVerifierAcceptsExplicitlyTrustedLeafEvenWhenExpired(t *testing.T) {
	cert := selfSignedCert(t, "mail.example.com", time.Now().Add(-time.Hour))
	v := &DefaultVerifier{Roots: x509.NewCertPool(), ExplicitlyTrusted: []*x509.Certificate{cert}}
	if err := v.Verify([]*x509.Certificate{cert}, "mail.example.com"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestDefaultVerifierRejectsUntrustedCert(t *testing.T) {
	cert := selfSignedCert(t, "mail.example.com", time.Now().Add(24*time.Hour))
	v := &DefaultVerifier{Roots: x509.NewCertPool()}
	if err := v.Verify([]*x509.Certificate{cert}, "mail.example.com"); err == nil {
		t.Fatal("expected an error for a cert with no trusted root")
	}
}

func TestClientConfigSetsServerNameAndSkipVerifyWhenVerifierPresent(t *testing.T) {
	s := &Session{Verifier: &DefaultVerifier{}}
	cfg := s.ClientConfig("mail.example.com")
	if cfg.ServerName != "mail.example.com" {
		t.Fatalf("ServerName = %q", cfg.ServerName)
	}
	if !cfg.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify when a custom Verifier is set (it drives verification itself)")
	}
	if cfg.VerifyPeerCertificate == nil {
		t.Fatal("expected VerifyPeerCertificate hook to be wired")
	}
}

func TestClientConfigWithoutVerifierLeavesDefaultVerification(t *testing.T) {
	s := &Session{}
	cfg := s.ClientConfig("mail.example.com")
	if cfg.InsecureSkipVerify {
		t.Fatal("InsecureSkipVerify should stay false with no custom Verifier")
	}
}
