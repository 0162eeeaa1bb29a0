// Package tlslayer implements the TLS session wrapper and certificate
// verifier contract (spec §4.14): STARTTLS upgrade of an established
// Socket, and a pluggable CertificateVerifier with a default chain-walk
// implementation.
//
// Grounded on the teacher's util/devcert (a *tls.Config builder) and
// util/tlstest (test certificate helpers); the default verifier's
// chain-walk order follows
// original_source/src/security/cert/defaultCertificateVerifier.cpp,
// which walks the presented chain from leaf to the first trust anchor
// found rather than requiring the full chain to already be ordered.
package tlslayer

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"mailkit.dev/mailkit/net/socket"
)

// VerificationError is a leaf-to-root chain walk failure, naming the
// certificate and reason (so callers can present it to a user the way a
// mail client prompts on an untrusted cert).
type VerificationError struct {
	Subject string
	Reason  string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("tlslayer: certificate %q rejected: %s", e.Subject, e.Reason)
}

// CertificateVerifier decides whether a presented chain should be
// trusted for serverName (spec §4.14).
type CertificateVerifier interface {
	Verify(chain []*x509.Certificate, serverName string) error
}

// DefaultVerifier walks the presented chain from the leaf certificate,
// verifying each certificate's signature against the next, and accepts
// once any certificate in the chain matches a root in Roots (or, if Roots
// is nil, the system pool) — mirroring defaultCertificateVerifier's
// "first trust anchor encountered" walk rather than demanding the
// server send a complete chain to the root. A leaf matching one of
// ExplicitlyTrusted bypasses the chain walk entirely (spec §4.14(c)'s
// "the leaf equals a configured explicitly-trusted cert").
type DefaultVerifier struct {
	Roots             *x509.CertPool
	ExplicitlyTrusted []*x509.Certificate
	Now               func() time.Time
}

func (v *DefaultVerifier) Verify(chain []*x509.Certificate, serverName string) error {
	if len(chain) == 0 {
		return &VerificationError{Reason: "empty certificate chain"}
	}
	leaf := chain[0]

	for _, trusted := range v.ExplicitlyTrusted {
		if trusted.Equal(leaf) {
			return nil
		}
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	opts := x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: x509.NewCertPool(),
		CurrentTime:   now(),
		DNSName:       serverName,
	}
	for _, c := range chain[1:] {
		opts.Intermediates.AddCert(c)
	}

	if _, err := leaf.Verify(opts); err != nil {
		return &VerificationError{Subject: leaf.Subject.CommonName, Reason: err.Error()}
	}
	return nil
}

// Session wraps an established Socket, performing the TLS handshake and
// exposing the negotiated connection as a Socket in turn.
type Session struct {
	Config   *tls.Config
	Verifier CertificateVerifier
}

// ClientConfig builds a *tls.Config for a handshake with serverName,
// wiring s.Verifier in as a VerifyPeerCertificate hook when set. Exposed
// so callers that must hand their own net.Conn to a third-party dialog
// driver (e.g. net/smtp.Client.StartTLS) still get this package's
// certificate verification instead of that driver's default.
func (s *Session) ClientConfig(serverName string) *tls.Config {
	cfg := s.Config
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg = cfg.Clone()
	cfg.ServerName = serverName
	if s.Verifier != nil {
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			chain := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				chain = append(chain, cert)
			}
			return s.Verifier.Verify(chain, serverName)
		}
	}
	return cfg
}

// Upgrade performs a client-side TLS handshake over sock (used after
// STARTTLS or for an implicit-TLS port), applying s.Verifier in place of
// Config's built-in verification when set.
func (s *Session) Upgrade(sock socket.Socket, serverName string) (socket.Socket, error) {
	cfg := s.ClientConfig(serverName)
	tlsConn := tls.Client(socketConn{sock}, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tlslayer: handshake: %v", err)
	}
	return socket.Wrap(tlsConn), nil
}

// socketConn adapts a Socket back to net.Conn, which crypto/tls requires
// concretely; the Set*Deadline methods translate an absolute deadline
// into the Duration-based timeouts Socket exposes.
type socketConn struct{ socket.Socket }

func (c socketConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c socketConn) SetReadDeadline(t time.Time) error {
	return c.Socket.SetReadTimeout(deadlineDuration(t))
}

func (c socketConn) SetWriteDeadline(t time.Time) error {
	return c.Socket.SetWriteTimeout(deadlineDuration(t))
}

func deadlineDuration(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Until(t)
}
