// Package smtptransport implements store.Transport over SMTP (spec §4.12,
// §5's SMTP session): MX lookup, STARTTLS upgrade, AUTH, and the
// MAIL/RCPT/DATA dialog.
//
// Grounded directly on smtp/smtpclient/smtpclient.go's Client/send: the
// same per-domain MX lookup and spool grouping in Send, the same
// net.Dialer+context-watching-goroutine dial sequence, and the same
// net/smtp.Client dialog driver in send — generalized to use this
// module's net/tlslayer (with real certificate verification in place of
// the teacher's InsecureSkipVerify) and net/sasl (for AUTH mechanisms
// beyond net/smtp's built-in PlainAuth) instead of being hard-coded to
// always STARTTLS and never authenticate.
package smtptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"sync"

	"time"

	gosasl "github.com/emersion/go-sasl"

	"mailkit.dev/mailkit/address"
	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/net/sasl"
	"mailkit.dev/mailkit/net/socket"
	"mailkit.dev/mailkit/net/store"
	"mailkit.dev/mailkit/net/tlslayer"
)

// Config configures a Transport.
type Config struct {
	LocalHostname string
	Resolver      *net.Resolver

	// Direct delivery mode: when Host is set, Send connects there
	// instead of resolving MX records for each recipient domain (the
	// submission-relay case, as opposed to the teacher's always-MX-route
	// mode).
	Host string
	Port int

	TLS      *tlslayer.Session
	SASL     *sasl.Credentials
	Mechanism string

	DialFactory socket.Factory
	MaxConcurrent int
}

// Transport is an SMTP store.Transport.
type Transport struct {
	cfg      Config
	limiter  chan struct{}
	mu       sync.Mutex
	connected bool
}

// NewTransport returns a Transport. MaxConcurrent defaults to 4.
func NewTransport(cfg Config) *Transport {
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	if cfg.DialFactory == nil {
		cfg.DialFactory = socket.DefaultFactory
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Transport{cfg: cfg, limiter: make(chan struct{}, cfg.MaxConcurrent)}
}

func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

// SendMessage renders msg and delivers it via Send.
func (t *Transport) SendMessage(ctx context.Context, msg *mime.BodyPart, progress store.Progress) error {
	var buf bytes.Buffer
	ctxGen := defaultGenerationContext()
	if _, err := msg.Generate(ctxGen, &buf, 0); err != nil {
		return fmt.Errorf("smtptransport: generate message: %v", err)
	}
	from, to := extractEnvelope(msg)
	return t.Send(ctx, from, to, bytes.NewReader(buf.Bytes()), int64(buf.Len()), progress)
}

// Send delivers contents to recipients, grouping recipients by resolved MX
// spool the way smtpclient.Client.Send does.
func (t *Transport) Send(ctx context.Context, from string, recipients []string, contents io.Reader, size int64, progress store.Progress) error {
	data, err := io.ReadAll(contents)
	if err != nil {
		return err
	}

	if t.cfg.Host != "" {
		return t.deliverTo(ctx, net.JoinHostPort(t.cfg.Host, portString(t.cfg.Port)), from, recipients, data, progress)
	}

	mxDomain := make(map[string]string)
	spools := make(map[string][]string)
	for _, to := range recipients {
		at := strings.LastIndexByte(to, '@')
		if at < 0 {
			continue
		}
		domain := to[at+1:]
		mxAddr := mxDomain[domain]
		if mxAddr == "" {
			mxs, err := t.cfg.Resolver.LookupMX(ctx, domain)
			if err != nil {
				continue
			}
			pref := uint16(65535)
			for _, opt := range mxs {
				if opt.Pref < pref {
					mxAddr, pref = opt.Host, opt.Pref
				}
			}
			if mxAddr == "" {
				continue
			}
			mxDomain[domain] = mxAddr
		}
		spools[mxAddr] = append(spools[mxAddr], to)
	}

	var firstErr error
	for mxHost, rcpts := range spools {
		if err := t.deliverTo(ctx, net.JoinHostPort(mxHost, "25"), from, rcpts, data, progress); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func portString(p int) string {
	if p == 0 {
		return "25"
	}
	return fmt.Sprintf("%d", p)
}

func (t *Transport) deliverTo(ctx context.Context, addr, from string, recipients []string, data []byte, progress store.Progress) error {
	select {
	case t.limiter <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.limiter }()

	sock, done, err := t.cfg.DialFactory(ctx, "tcp", addr)
	if err != nil {
		return &store.ConnectionError{Kind: store.Refused, Err: err}
	}
	defer done()

	host, _, _ := net.SplitHostPort(addr)
	conn := &socketNetConn{sock}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return &store.ConnectionError{Kind: store.Greeting, Err: err}
	}
	defer client.Close()

	if err := client.Hello(t.cfg.LocalHostname); err != nil {
		return &store.ConnectionError{Kind: store.Greeting, Err: err}
	}

	if ok, _ := client.Extension("STARTTLS"); ok && t.cfg.TLS != nil {
		if err := client.StartTLS(t.cfg.TLS.ClientConfig(host)); err != nil {
			return &store.ConnectionError{Kind: store.TLS, Err: err}
		}
	}

	if t.cfg.SASL != nil {
		mechName := t.cfg.Mechanism
		if mechName == "" {
			mechName = sasl.Plain
		}
		mech, err := sasl.NewMechanism(mechName, *t.cfg.SASL)
		if err != nil {
			return &store.ConnectionError{Kind: store.Auth, Err: err}
		}
		if err := client.Auth(&saslAuthAdapter{mech: mech}); err != nil {
			return &store.ConnectionError{Kind: store.Auth, Err: err}
		}
	}

	if err := client.Mail(from); err != nil {
		return &store.ConnectionError{Kind: store.Refused, Err: err}
	}
	for _, to := range recipients {
		if err := client.Rcpt(to); err != nil {
			if tperr, ok := err.(*textproto.Error); ok {
				return fmt.Errorf("smtptransport: rcpt %s rejected: %d %s", to, tperr.Code, tperr.Msg)
			}
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	total := int64(len(data))
	if progress == nil {
		_, err = w.Write(data)
	} else {
		err = writeWithProgress(w, data, progress, total)
	}
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func writeWithProgress(w io.Writer, data []byte, progress store.Progress, total int64) error {
	const chunk = 32 * 1024
	var sent int64
	for sent < total {
		end := sent + chunk
		if end > total {
			end = total
		}
		n, err := w.Write(data[sent:end])
		sent += int64(n)
		progress(sent, total)
		if err != nil {
			return err
		}
	}
	return nil
}

// extractEnvelope derives the SMTP envelope from a message's From/To/Cc/Bcc
// headers (the teacher's caller always supplies the envelope explicitly;
// SendMessage needs to derive one when a caller hands it a whole message
// instead, so it falls back to those headers the way a mail submission
// agent would).
func extractEnvelope(msg *mime.BodyPart) (from string, to []string) {
	if mb, err := address.ParseMailbox(string(msg.Header.Get("From"))); err == nil {
		from = mb.Addr
	}
	for _, key := range []string{"To", "Cc", "Bcc"} {
		list, err := address.ParseMailboxList(string(msg.Header.Get(header.Key(key))))
		if err != nil {
			continue
		}
		for _, mb := range list {
			to = append(to, mb.Addr)
		}
	}
	return from, to
}

func defaultGenerationContext() *component.GenerationContext {
	return component.DefaultGenerationContext()
}

// socketNetConn adapts a socket.Socket to net.Conn for net/smtp.NewClient,
// matching tlslayer's socketConn adapter (duplicated rather than shared
// since tlslayer's adapter is unexported).
type socketNetConn struct{ socket.Socket }

func (c socketNetConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c socketNetConn) SetReadDeadline(t time.Time) error {
	return c.Socket.SetReadTimeout(deadlineDuration(t))
}

func (c socketNetConn) SetWriteDeadline(t time.Time) error {
	return c.Socket.SetWriteTimeout(deadlineDuration(t))
}

func deadlineDuration(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Until(t)
}

// saslAuthAdapter bridges a gosasl.Client to net/smtp's Auth interface.
type saslAuthAdapter struct{ mech gosasl.Client }

func (a *saslAuthAdapter) Start(server *smtp.ServerInfo) (proto string, toServer []byte, err error) {
	return a.mech.Start()
}

func (a *saslAuthAdapter) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.mech.Next(fromServer)
}
