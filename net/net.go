// Package net implements the Session/Service/Authenticator layer shared
// by every transport and store (spec §4.11): a property-bag Session, the
// default and SASL authenticators, and the Service connection-lifecycle
// state machine.
//
// Grounded on the teacher's imap/imapserver.Server field-bag configuration
// style (imapserver.go's Server struct: plain exported fields for
// Logf/Filer/TLSConfig/etc, no builder pattern) and smtp/smtpclient's
// context-driven connect/dial sequence.
package net

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Session is a property bag plus an authenticator reference (spec §3).
// Property keys are dotted, e.g. "smtp.auth.username".
type Session struct {
	mu         sync.RWMutex
	properties map[string]string
	Auth       Authenticator
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{properties: map[string]string{}}
}

// Set stores a property value.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.properties == nil {
		s.properties = map[string]string{}
	}
	s.properties[key] = value
}

// Get returns a property value and whether it was set.
func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.properties[key]
	return v, ok
}

// GetBool parses a property as a bool, defaulting to false.
func (s *Session) GetBool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// Authenticator exposes the credential/identity getters a Service
// consults while connecting (spec §4.11).
type Authenticator interface {
	Username(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
	Hostname(ctx context.Context) (string, error)
	AnonymousToken(ctx context.Context) (string, error)
	ServiceName(ctx context.Context) (string, error)
	AccessToken(ctx context.Context) (string, error)
}

// DefaultAuthenticator reads properties from a Session prefixed by the
// service's property prefix, e.g. "smtp.auth.username" (spec §4.11).
type DefaultAuthenticator struct {
	Session *Session
	Prefix  string // e.g. "smtp"
}

func (a *DefaultAuthenticator) prop(suffix string) (string, error) {
	key := a.Prefix + "." + suffix
	v, ok := a.Session.Get(key)
	if !ok {
		return "", fmt.Errorf("net: missing session property %q", key)
	}
	return v, nil
}

func (a *DefaultAuthenticator) Username(context.Context) (string, error) { return a.prop("auth.username") }
func (a *DefaultAuthenticator) Password(context.Context) (string, error) { return a.prop("auth.password") }
func (a *DefaultAuthenticator) Hostname(context.Context) (string, error) { return a.prop("server.address") }
func (a *DefaultAuthenticator) AnonymousToken(context.Context) (string, error) {
	return a.prop("auth.anonymous-token")
}
func (a *DefaultAuthenticator) ServiceName(context.Context) (string, error) { return a.Prefix, nil }
func (a *DefaultAuthenticator) AccessToken(context.Context) (string, error) {
	return a.prop("auth.access-token")
}

// SASLAuthenticator additionally chooses the mechanism order: the
// suggested mechanism first, the rest of the available set kept in
// received order (spec §4.11).
type SASLAuthenticator struct {
	DefaultAuthenticator
}

// OrderMechanisms puts suggested first (if present in available), keeping
// the rest in their received order.
func (a *SASLAuthenticator) OrderMechanisms(available []string, suggested string) []string {
	if suggested == "" {
		return available
	}
	ordered := make([]string, 0, len(available))
	found := false
	for _, m := range available {
		if strings.EqualFold(m, suggested) {
			found = true
			continue
		}
	}
	if found {
		ordered = append(ordered, suggested)
	}
	for _, m := range available {
		if !strings.EqualFold(m, suggested) {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// State is a Service's connection lifecycle state (spec §4.11).
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// TimeoutFactory produces a per-operation timeout handler (spec §4.11's
// "timeout.factory" configuration key).
type TimeoutFactory func(op string) (timeout func())

// TracerFactory produces a protocol tracer for a new connection (spec
// §4.11's "tracer.factory" key).
type TracerFactory func(connID string) Tracer

// Tracer receives raw protocol lines as they are sent/received, for
// logging/debugging (grounded on imapserver.Server.Debug's per-session
// io.WriteCloser).
type Tracer interface {
	Sent(line string)
	Received(line string)
}

// Config is the recognised service-level configuration (spec §4.11's
// table): TLS negotiation policy, authentication requirements, the
// target endpoint, and the injected timeout/tracer factories.
type Config struct {
	TLS              bool
	TLSRequired      bool
	NeedAuthentication bool
	ServerAddress    string
	ServerPort       int
	TimeoutFactory   TimeoutFactory
	TracerFactory    TracerFactory
}

// Service is a stateful connection owner shared by every Store/Transport
// implementation (spec §4.11).
type Service struct {
	mu     sync.Mutex
	state  State
	Config Config
	Session *Session
}

// NewService returns a disconnected Service.
func NewService(session *Session, cfg Config) *Service {
	return &Service{state: Disconnected, Config: cfg, Session: session}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition validates and applies a lifecycle transition, returning an
// error if it is not legal from the current state.
func (s *Service) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	legal := map[State][]State{
		Disconnected:  {Connecting},
		Connecting:    {Connected, Disconnected},
		Connected:     {Disconnecting, Disconnected},
		Disconnecting: {Disconnected},
	}
	for _, ok := range legal[s.state] {
		if ok == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("net: illegal transition %s -> %s", s.state, to)
}
