// Package sasl implements the SASL session/mechanism layer (spec §4.15):
// a mechanism factory wired to github.com/emersion/go-sasl, a
// SASLSession driving the challenge/response exchange, and a SASLSocket
// that can mark a connection as auth-negotiated.
//
// Grounded on the teacher's use of crawshaw.io/iox and plain net.Conn
// wrapping elsewhere in the pack (no corpus repo implements SASL
// directly); go-sasl is the ecosystem library the mail protocol corpus
// (imap/smtp clients) would reach for, per DESIGN.md.
package sasl

import (
	"fmt"
	"strings"

	gosasl "github.com/emersion/go-sasl"

	"mailkit.dev/mailkit/net/socket"
)

// Mechanism names recognised by the factory below.
const (
	Plain       = gosasl.Plain
	Login       = gosasl.Login
	Anonymous   = gosasl.Anonymous
	OAuthBearer = gosasl.OAuthBearer
	Xoauth2     = "XOAUTH2"
)

// Credentials is the identity information a mechanism needs to start.
type Credentials struct {
	Identity string
	Username string
	Password string
	Token    string // access token, for XOAUTH2/OAUTHBEARER
	Host     string
	Port     int
}

// securityRank orders mechanisms from most to least secure, per
// original_source/src/security/sasl/defaultSASLAuthenticator.cpp (SPEC_FULL
// "OPEN QUESTION DECISIONS"): SCRAM > CRAM-MD5 > DIGEST-MD5 > PLAIN > LOGIN
// > ANONYMOUS. SCRAM/CRAM-MD5/DIGEST-MD5 are listed even though this
// factory has no built-in for them, so a user-registered mechanism of that
// name still ranks correctly against the built-ins.
var securityRank = []string{
	"SCRAM-SHA-256", "SCRAM-SHA-1",
	"CRAM-MD5",
	"DIGEST-MD5",
	gosasl.Plain,
	gosasl.Login,
	Xoauth2,
	gosasl.OAuthBearer,
	gosasl.Anonymous,
}

// builtins is the mechanism set this factory can construct without any
// user registration (spec §4.15's "Built-in mechanisms").
var builtins = []string{gosasl.Plain, gosasl.Login, gosasl.Anonymous, Xoauth2, gosasl.OAuthBearer}

// registered holds mechanism names added via RegisterMechanism, beyond the
// built-in set (spec §4.15: "plus user-registered ones").
var registered []string

// RegisterMechanism adds name to the set GetSupportedMechanisms reports,
// for mechanisms a caller constructs itself rather than through
// NewMechanism (e.g. a vendor-specific SASL mechanism).
func RegisterMechanism(name string) {
	for _, m := range registered {
		if strings.EqualFold(m, name) {
			return
		}
	}
	registered = append(registered, name)
}

// GetSupportedMechanisms returns the built-in mechanisms plus any
// registered via RegisterMechanism (spec §4.15).
func GetSupportedMechanisms() []string {
	out := make([]string, 0, len(builtins)+len(registered))
	out = append(out, builtins...)
	out = append(out, registered...)
	return out
}

// SuggestMechanism returns the most secure mechanism present in both
// available and GetSupportedMechanisms, per securityRank (spec §4.15).
// It returns "" if no mechanism in available is supported.
func SuggestMechanism(available []string) string {
	supported := GetSupportedMechanisms()
	for _, candidate := range securityRank {
		for _, avail := range available {
			if !strings.EqualFold(avail, candidate) {
				continue
			}
			for _, s := range supported {
				if strings.EqualFold(s, candidate) {
					return avail
				}
			}
		}
	}
	return ""
}

// NewMechanism builds a go-sasl Client for the named mechanism (spec
// §4.15's mechanism factory).
func NewMechanism(name string, creds Credentials) (gosasl.Client, error) {
	switch name {
	case gosasl.Plain:
		return gosasl.NewPlainClient(creds.Identity, creds.Username, creds.Password), nil
	case gosasl.Login:
		return gosasl.NewLoginClient(creds.Username, creds.Password), nil
	case gosasl.Anonymous:
		return gosasl.NewAnonymousClient(creds.Username), nil
	case Xoauth2:
		return gosasl.NewXoauth2Client(creds.Username, creds.Token), nil
	case gosasl.OAuthBearer:
		return gosasl.NewOAuthBearerClient(&gosasl.OAuthBearerOptions{
			Username: creds.Username,
			Token:    creds.Token,
			Host:     creds.Host,
			Port:     creds.Port,
		}), nil
	default:
		return nil, fmt.Errorf("sasl: unknown mechanism %q", name)
	}
}

// Session drives a client-side SASL exchange over a transport's
// challenge/response primitives (each protocol's AUTH command supplies
// the actual wire framing; Session only tracks mechanism state).
type Session struct {
	Mechanism gosasl.Client
	done      bool
}

// NewSession wraps a mechanism client.
func NewSession(mech gosasl.Client) *Session { return &Session{Mechanism: mech} }

// Start begins the exchange, returning the mechanism name and initial
// response (possibly nil, for mechanisms without an initial response).
func (s *Session) Start() (mech string, initial []byte, err error) {
	return s.Mechanism.Start()
}

// Step processes one server challenge and returns the client's response.
func (s *Session) Step(challenge []byte) (response []byte, err error) {
	resp, err := s.Mechanism.Next(challenge)
	if err != nil {
		s.done = true
	}
	return resp, err
}

// Done reports whether the exchange has finished (successfully or not).
func (s *Session) Done() bool { return s.done }

// Finish marks the exchange complete after the server's final success
// reply.
func (s *Session) Finish() { s.done = true }

// Encode applies the mechanism's negotiated per-message integrity/privacy
// layer to plaintext before it is written to the wire (spec §4.15's
// SASLSocket.sendRaw). None of PLAIN/LOGIN/ANONYMOUS/XOAUTH2/OAUTHBEARER
// negotiate a QOP layer, so this is the identity transform for every
// mechanism this factory builds; a future GSSAPI/DIGEST-MD5-with-QOP
// mechanism would override it.
func (s *Session) Encode(plaintext []byte) []byte { return plaintext }

// Decode reverses Encode on data read from the wire (spec §4.15's
// SASLSocket.receiveRaw).
func (s *Session) Decode(ciphertext []byte) []byte { return ciphertext }

// Socket wraps an underlying socket.Socket so that every Write is routed
// through the negotiated mechanism's Encode and every Read through its
// Decode, per spec §4.15's SASLSocket: "on each receiveRaw it first
// drains a pending-decoded buffer, then reads one ciphertext block...
// sendRaw routes through mechanism.encode before writing." Decoded bytes
// in excess of the caller's buffer are held in pending for the next Read.
type Socket struct {
	socket.Socket
	Mechanism string
	session   *Session
	pending   []byte
}

// Wrap returns sock tagged with the mechanism that authenticated it,
// routing subsequent Read/Write through sess's Encode/Decode.
func Wrap(sock socket.Socket, mechanism string, sess *Session) *Socket {
	return &Socket{Socket: sock, Mechanism: mechanism, session: sess}
}

// Read drains any buffered decoded bytes left over from a previous call
// before reading and decoding the next block from the underlying socket.
func (s *Socket) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	raw := make([]byte, len(p))
	n, err := s.Socket.Read(raw)
	if n == 0 {
		return 0, err
	}
	decoded := s.session.Decode(raw[:n])
	written := copy(p, decoded)
	if written < len(decoded) {
		s.pending = append(s.pending, decoded[written:]...)
	}
	return written, err
}

// Write encodes p through the negotiated mechanism before handing it to
// the underlying socket.
func (s *Socket) Write(p []byte) (int, error) {
	encoded := s.session.Encode(p)
	if _, err := s.Socket.Write(encoded); err != nil {
		return 0, err
	}
	return len(p), nil
}
