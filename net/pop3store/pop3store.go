// Package pop3store implements store.Store/Folder/Message over POP3 (RFC
// 1939). The commands issued are USER/PASS, LIST, UIDL, RETR, TOP, DELE,
// RSET and QUIT; APOP, STAT and NOOP are not issued.
//
// Grounded on smtp/smtpclient/smtpclient.go's dial/greeting/textproto
// dialog style, generalized from net/smtp's request/reply pattern to
// net/textproto's raw Cmd/ReadLine primitives (POP3's reply grammar,
// "+OK ..."/"-ERR ...", doesn't fit net/smtp's SMTP-specific helpers).
package pop3store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"

	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/net/socket"
	"mailkit.dev/mailkit/net/store"
	"mailkit.dev/mailkit/net/tlslayer"
)

// Config configures a Store.
type Config struct {
	Address     string
	Username    string
	Password    string
	TLS         *tlslayer.Session
	DialFactory socket.Factory
}

// Store is a POP3 mailbox. POP3 has exactly one implicit folder (the
// server's single maildrop), named "INBOX" for symmetry with the other
// backends.
type Store struct {
	cfg  Config
	mu   sync.Mutex
	conn *textproto.Conn
	done func()
}

// NewStore returns a disconnected Store.
func NewStore(cfg Config) *Store {
	if cfg.DialFactory == nil {
		cfg.DialFactory = socket.DefaultFactory
	}
	return &Store{cfg: cfg}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	sock, done, err := s.cfg.DialFactory(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return &store.ConnectionError{Kind: store.Refused, Err: err}
	}
	if s.cfg.TLS != nil {
		host, _, _ := net.SplitHostPort(s.cfg.Address)
		sock, err = s.cfg.TLS.Upgrade(sock, host)
		if err != nil {
			done()
			return &store.ConnectionError{Kind: store.TLS, Err: err}
		}
	}

	conn := textproto.NewConn(sock)
	if _, _, err := conn.ReadResponse('+'); err != nil {
		done()
		return &store.ConnectionError{Kind: store.Greeting, Err: err}
	}

	if err := cmdOK(conn, "USER %s", s.cfg.Username); err != nil {
		done()
		return &store.ConnectionError{Kind: store.Auth, Err: err}
	}
	if err := cmdOK(conn, "PASS %s", s.cfg.Password); err != nil {
		done()
		return &store.ConnectionError{Kind: store.Auth, Err: err}
	}

	s.conn = conn
	s.done = done
	return nil
}

func (s *Store) DefaultFolder(ctx context.Context) (store.Folder, error) {
	return &Folder{store: s}, nil
}

func (s *Store) RootFolder(ctx context.Context) (store.Folder, error) {
	return &Folder{store: s}, nil
}

func (s *Store) Folder(ctx context.Context, path []string) (store.Folder, error) {
	return &Folder{store: s}, nil
}

func (s *Store) IsSecuredConnection() bool { return s.cfg.TLS != nil }
func (s *Store) ConnectionInfo() string    { return "pop3://" + s.cfg.Address }

func (s *Store) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.conn.Cmd("QUIT")
	err := s.conn.Close()
	if s.done != nil {
		s.done()
	}
	s.conn = nil
	return err
}

// cmdOK sends a command and requires a "+OK" reply.
func cmdOK(conn *textproto.Conn, format string, args ...interface{}) error {
	id, err := conn.Cmd(format, args...)
	if err != nil {
		return err
	}
	conn.StartResponse(id)
	defer conn.EndResponse(id)
	_, _, err = conn.ReadResponse('+')
	return err
}

// cmdMultiline sends a command expecting a "+OK" reply followed by a
// dot-terminated multiline block, returning the unstuffed lines.
func cmdMultiline(conn *textproto.Conn, format string, args ...interface{}) ([]string, error) {
	id, err := conn.Cmd(format, args...)
	if err != nil {
		return nil, err
	}
	conn.StartResponse(id)
	defer conn.EndResponse(id)
	if _, _, err := conn.ReadResponse('+'); err != nil {
		return nil, err
	}
	return conn.ReadDotLines()
}

// Folder is POP3's single implicit mailbox.
type Folder struct {
	store *Store
	mu    sync.Mutex
	mode  store.FolderOpenMode
	msgs  []popMessage
}

type popMessage struct {
	num     uint32
	size    int64
	uid     string
	deleted bool
	fetched store.FetchAttributes
}

func (f *Folder) Path() []string            { return []string{"INBOX"} }
func (f *Folder) Mode() store.FolderOpenMode { return f.mode }

func (f *Folder) Open(ctx context.Context, mode store.FolderOpenMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != store.ModeClosed {
		return &store.FolderAlreadyOpen{Path: "INBOX"}
	}
	if err := f.refreshLocked(); err != nil {
		return err
	}
	f.mode = mode
	return nil
}

func (f *Folder) refreshLocked() error {
	f.store.mu.Lock()
	conn := f.store.conn
	f.store.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("pop3store: not connected")
	}

	lines, err := cmdMultiline(conn, "LIST")
	if err != nil {
		return fmt.Errorf("pop3store: LIST: %v", err)
	}
	msgs := make([]popMessage, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		num, _ := strconv.ParseUint(fields[0], 10, 32)
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		msgs = append(msgs, popMessage{num: uint32(num), size: size})
	}

	if uidls, err := cmdMultiline(conn, "UIDL"); err == nil {
		uidByNum := make(map[uint32]string, len(uidls))
		for _, line := range uidls {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			num, _ := strconv.ParseUint(fields[0], 10, 32)
			uidByNum[uint32(num)] = fields[1]
		}
		for i := range msgs {
			msgs[i].uid = uidByNum[msgs[i].num]
		}
	}

	f.msgs = msgs
	return nil
}

func (f *Folder) Close(ctx context.Context, expunge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if expunge {
		if err := f.expungeLocked(); err != nil {
			return err
		}
	} else {
		// RSET undoes any DELE marks this session made, since POP3 only
		// expunges on a clean QUIT.
		f.store.mu.Lock()
		if f.store.conn != nil {
			f.store.conn.Cmd("RSET")
		}
		f.store.mu.Unlock()
	}
	f.mode = store.ModeClosed
	return f.store.disconnect()
}

func (f *Folder) expungeLocked() error {
	f.store.mu.Lock()
	conn := f.store.conn
	f.store.mu.Unlock()
	if conn == nil {
		return nil
	}
	for _, m := range f.msgs {
		if m.deleted {
			if err := cmdOK(conn, "DELE %d", m.num); err != nil {
				return err
			}
		}
	}
	return cmdOK(conn, "QUIT")
}

func (f *Folder) Exists(ctx context.Context) (bool, error) { return true, nil }
func (f *Folder) Create(ctx context.Context, kind store.FolderCreateKind) error {
	return fmt.Errorf("pop3store: folder creation is not supported")
}
func (f *Folder) Destroy(ctx context.Context) error {
	return fmt.Errorf("pop3store: folder deletion is not supported")
}
func (f *Folder) Rename(ctx context.Context, newPath []string) error {
	return fmt.Errorf("pop3store: folder rename is not supported")
}

func (f *Folder) MessageCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs), nil
}

func (f *Folder) Status(ctx context.Context) (count, unseen int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// POP3 has no \Seen concept server-side; every message is unseen
	// until the session marks it fetched.
	unseen = 0
	for _, m := range f.msgs {
		if !m.fetched.Has(store.AttrFullHeader) {
			unseen++
		}
	}
	return len(f.msgs), unseen, nil
}

func (f *Folder) Messages(ctx context.Context, set store.MessageSet) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for i := range f.msgs {
		if inSet(set, f.msgs[i].num) {
			out = append(out, &Message{folder: f, idx: i})
		}
	}
	return out, nil
}

func inSet(set store.MessageSet, num uint32) bool {
	if len(set.Ranges) == 0 {
		return true
	}
	for _, r := range set.Ranges {
		if num >= r.From && num <= r.To {
			return true
		}
	}
	return false
}

func (f *Folder) FetchMessages(ctx context.Context, msgs []store.Message, attrs store.FetchAttributes, progress store.Progress) error {
	for i, m := range msgs {
		pm, ok := m.(*Message)
		if ok {
			f.mu.Lock()
			f.msgs[pm.idx].fetched |= attrs
			f.mu.Unlock()
		}
		if progress != nil {
			progress(int64(i+1), int64(len(msgs)))
		}
	}
	return nil
}

func (f *Folder) AddMessage(ctx context.Context, msg io.Reader, size int64, flags store.Flags, internalDate interface{}) (store.MessageSet, error) {
	return store.MessageSet{}, fmt.Errorf("pop3store: POP3 has no message-submission command")
}

func (f *Folder) CopyMessages(ctx context.Context, destPath []string, set store.MessageSet) (store.MessageSet, error) {
	return store.MessageSet{}, fmt.Errorf("pop3store: POP3 has no server-side copy")
}

func (f *Folder) DeleteMessages(ctx context.Context, set store.MessageSet) error {
	return f.SetMessageFlags(ctx, set, store.FlagDeleted, store.FlagAdd)
}

func (f *Folder) SetMessageFlags(ctx context.Context, set store.MessageSet, flags store.Flags, op store.FlagOp) error {
	if flags&store.FlagDeleted == 0 {
		return nil // POP3 models only the \Deleted flag, via DELE/RSET
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.msgs {
		if !inSet(set, f.msgs[i].num) {
			continue
		}
		switch op {
		case store.FlagAdd, store.FlagSet:
			f.msgs[i].deleted = true
		case store.FlagRemove:
			f.msgs[i].deleted = false
		}
	}
	return nil
}

func (f *Folder) Expunge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.expungeLocked(); err != nil {
		return err
	}
	return f.refreshLocked()
}

// Message is a POP3-backed store.Message, addressed by its session-local
// message number (POP3 has no stable UID beyond the optional, often
// absent, UIDL extension).
type Message struct {
	folder *Folder
	idx    int
}

func (m *Message) entry() popMessage {
	m.folder.mu.Lock()
	defer m.folder.mu.Unlock()
	return m.folder.msgs[m.idx]
}

func (m *Message) Number() uint32 { return m.entry().num }

func (m *Message) UID() (uint32, bool) {
	e := m.entry()
	if e.uid == "" {
		return 0, false
	}
	return e.num, true
}

func (m *Message) Fetched() store.FetchAttributes { return m.entry().fetched }

func (m *Message) Size() (int64, error) { return m.entry().size, nil }

func (m *Message) Flags() (store.Flags, error) {
	e := m.entry()
	var flags store.Flags
	if e.deleted {
		flags |= store.FlagDeleted
	}
	return flags, nil
}

func (m *Message) Header() (header.Header, error) {
	conn, err := m.conn()
	if err != nil {
		return header.Header{}, err
	}
	lines, err := cmdMultiline(conn, "TOP %d 0", m.entry().num)
	if err != nil {
		return header.Header{}, fmt.Errorf("pop3store: TOP: %v", err)
	}
	return parseHeaderLines(lines)
}

func (m *Message) conn() (*textproto.Conn, error) {
	m.folder.store.mu.Lock()
	defer m.folder.store.mu.Unlock()
	if m.folder.store.conn == nil {
		return nil, fmt.Errorf("pop3store: not connected")
	}
	return m.folder.store.conn, nil
}

func parseHeaderLines(lines []string) (header.Header, error) {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	r := header.NewReader(bufio.NewReader(&buf))
	return r.ReadMIMEHeader(false)
}

func (m *Message) Structure() (*mime.BodyPart, error) {
	var buf bytes.Buffer
	if err := m.Extract(context.Background(), &buf, nil); err != nil {
		return nil, err
	}
	bp := mime.NewBodyPart()
	data := buf.Bytes()
	if _, err := bp.Parse(component.DefaultParsingContext(), data, 0, len(data)); err != nil {
		return nil, err
	}
	return bp, nil
}

func (m *Message) Extract(ctx context.Context, out io.Writer, progress store.Progress) error {
	conn, err := m.conn()
	if err != nil {
		return err
	}
	lines, err := cmdMultiline(conn, "RETR %d", m.entry().num)
	if err != nil {
		return fmt.Errorf("pop3store: RETR: %v", err)
	}
	for i, l := range lines {
		if _, err := io.WriteString(out, l+"\r\n"); err != nil {
			return err
		}
		if progress != nil {
			progress(int64(i+1), int64(len(lines)))
		}
	}
	return nil
}

func (m *Message) ExtractPart(ctx context.Context, part *mime.BodyPart, out io.Writer, progress store.Progress, start, length int64) error {
	if part.Body == nil || part.Body.Content == nil {
		return nil
	}
	return part.Body.Content.Extract(out, nil)
}
