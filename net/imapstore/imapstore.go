// Package imapstore implements store.Store/Folder/Message over IMAP4rev1
// (RFC 3501): a deliberate sketch of the protocol at the level spec §1
// calls out — CONNECT/LOGIN/SELECT/FETCH/STORE/EXPUNGE/APPEND/COPY plus
// mailbox management — not the full command grammar (search keys,
// CONDSTORE, IDLE and the rest are out of scope; net/pop3store, whose
// grammar is small enough to cover completely, is the contrast case).
//
// Grounded on imap/imapparser/parser.go and imap/imapparser/scanner.go's
// response-line tokenizing approach (reused here as a literal-aware line
// reader rather than a full token scanner) and imap/imap.go's
// MessageSet/sequence-range shape, wired to this module's own
// net/socket, net/tlslayer and net/sasl instead of the teacher's
// crawshaw.io/iox-backed server-side Mailbox.
package imapstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/net/sasl"
	"mailkit.dev/mailkit/net/socket"
	"mailkit.dev/mailkit/net/store"
	"mailkit.dev/mailkit/net/tlslayer"
)

// Config configures a Store.
type Config struct {
	Address     string
	Username    string
	Password    string
	SASL        *sasl.Credentials // when set, used instead of plain LOGIN
	Mechanism   string
	TLS         *tlslayer.Session
	DialFactory socket.Factory
}

// Store is an IMAP mailbox provider.
type Store struct {
	cfg  Config
	mu   sync.Mutex
	cl   *client
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
	if s.cl != nil {
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

	cl := newClient(sock)
	if _, err := cl.readLine(); err != nil { // * OK greeting
		done()
		return &store.ConnectionError{Kind: store.Greeting, Err: err}
	}

	if s.cfg.SASL != nil {
		if err := s.authenticateSASL(cl); err != nil {
			done()
			return &store.ConnectionError{Kind: store.Auth, Err: err}
		}
	} else {
		_, _, err := cl.command("LOGIN %s %s", quoteString(s.cfg.Username), quoteString(s.cfg.Password))
		if err != nil {
			done()
			return &store.ConnectionError{Kind: store.Auth, Err: err}
		}
	}

	s.cl = cl
	s.done = done
	return nil
}

// authenticateSASL drives a SASL mechanism through IMAP's AUTHENTICATE
// command, base64-framing each challenge/response line the way
// net/sasl.Socket frames post-auth application data.
func (s *Store) authenticateSASL(cl *client) error {
	mechClient, err := sasl.NewMechanism(s.cfg.Mechanism, *s.cfg.SASL)
	if err != nil {
		return err
	}
	sess := sasl.NewSession(mechClient)
	mechName, initial, err := sess.Start()
	if err != nil {
		return err
	}
	tag := cl.nextTag()
	line := fmt.Sprintf("%s AUTHENTICATE %s", tag, mechName)
	if initial != nil {
		line += " " + b64(initial)
	}
	if err := cl.writeLine(line); err != nil {
		return err
	}
	for {
		resp, err := cl.readLine()
		if err != nil {
			return err
		}
		resp = strings.TrimRight(resp, "\r\n")
		if strings.HasPrefix(resp, "+ ") || resp == "+" {
			challenge := unb64(strings.TrimPrefix(strings.TrimPrefix(resp, "+"), " "))
			reply, err := sess.Step(challenge)
			if err != nil {
				return err
			}
			if err := cl.writeLine(b64(reply)); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(resp, tag+" ") {
			if !strings.Contains(resp, "OK") {
				return fmt.Errorf("imapstore: AUTHENTICATE failed: %s", resp)
			}
			sess.Finish()
			return nil
		}
		// untagged response during authentication; ignore and keep reading.
	}
}

func (s *Store) DefaultFolder(ctx context.Context) (store.Folder, error) {
	return s.Folder(ctx, []string{"INBOX"})
}

func (s *Store) RootFolder(ctx context.Context) (store.Folder, error) {
	return s.Folder(ctx, nil)
}

func (s *Store) Folder(ctx context.Context, path []string) (store.Folder, error) {
	return &Folder{store: s, path: path}, nil
}

func (s *Store) IsSecuredConnection() bool { return s.cfg.TLS != nil }
func (s *Store) ConnectionInfo() string    { return "imap://" + s.cfg.Address }

func (s *Store) connClient() (*client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cl == nil {
		return nil, fmt.Errorf("imapstore: not connected")
	}
	return s.cl, nil
}

func (s *Store) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cl == nil {
		return nil
	}
	s.cl.command("LOGOUT")
	err := s.cl.Close()
	if s.done != nil {
		s.done()
	}
	s.cl = nil
	return err
}

// Folder is an IMAP mailbox, addressed by its hierarchical path (spec
// §3's list-of-name-components). Path components join with "/" on the
// wire; a real deployment would consult the server's LIST hierarchy
// separator, out of scope for this sketch.
type Folder struct {
	store *Store
	mu    sync.Mutex
	path  []string
	mode  store.FolderOpenMode
	msgs  []*imapMessage

	exists, unseen int
}

type imapMessage struct {
	num      uint32
	uid      uint32
	size     int64
	flags    store.Flags
	internal string
	fetched  store.FetchAttributes
	header   header.Header
	raw      []byte
}

func (f *Folder) mailboxName() string {
	if len(f.path) == 0 {
		return "INBOX"
	}
	return strings.Join(f.path, "/")
}

func (f *Folder) Path() []string            { return f.path }
func (f *Folder) Mode() store.FolderOpenMode { return f.mode }

func (f *Folder) Open(ctx context.Context, mode store.FolderOpenMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != store.ModeClosed {
		return &store.FolderAlreadyOpen{Path: f.mailboxName()}
	}
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}

	cmd := "SELECT"
	if mode == store.ReadOnly {
		cmd = "EXAMINE"
	}
	untagged, _, err := cl.command("%s %s", cmd, quoteMailbox(f.mailboxName()))
	if err != nil {
		return fmt.Errorf("imapstore: %s: %v", cmd, err)
	}
	f.applySelectUntagged(untagged)
	if err := f.refreshLocked(cl); err != nil {
		return err
	}
	f.mode = mode
	return nil
}

// applySelectUntagged parses "* n EXISTS" / "* n RECENT" and
// "* OK [UNSEEN n]" lines from a SELECT/EXAMINE response.
func (f *Folder) applySelectUntagged(lines []string) {
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) < 3 || fields[0] != "*" {
			continue
		}
		switch strings.ToUpper(fields[2]) {
		case "EXISTS":
			if n, err := strconv.Atoi(fields[1]); err == nil {
				f.exists = n
			}
		}
		if strings.Contains(strings.ToUpper(l), "UNSEEN") {
			if n := extractBracketInt(l, "UNSEEN"); n >= 0 {
				f.unseen = n
			}
		}
	}
}

// extractBracketInt returns the first integer following key in a
// "[KEY n]"-shaped response code, e.g. "* OK [UNSEEN 12]".
func extractBracketInt(line, key string) int {
	ints := bracketInts(line, key)
	if len(ints) == 0 {
		return -1
	}
	return ints[0]
}

// bracketInts returns every integer following key up to the closing
// bracket, e.g. "[APPENDUID 1 100]" after key "APPENDUID" yields [1, 100]
// (uidvalidity, then the assigned UID).
func bracketInts(line, key string) []int {
	idx := strings.Index(strings.ToUpper(line), key)
	if idx < 0 {
		return nil
	}
	rest := strings.TrimSpace(line[idx+len(key):])
	if i := strings.IndexByte(rest, ']'); i >= 0 {
		rest = rest[:i]
	}
	var out []int
	for _, f := range strings.Fields(rest) {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		out = append(out, n)
	}
	return out
}

// refreshLocked re-populates the message list by fetching FLAGS and UID
// for every message number 1:exists.
func (f *Folder) refreshLocked(cl *client) error {
	if f.exists == 0 {
		f.msgs = nil
		return nil
	}
	untagged, _, err := cl.command("FETCH 1:%d (FLAGS UID)", f.exists)
	if err != nil {
		return fmt.Errorf("imapstore: FETCH: %v", err)
	}
	msgs := make([]*imapMessage, 0, f.exists)
	for _, l := range untagged {
		num, fields, ok := parseFetchLine(l)
		if !ok {
			continue
		}
		m := &imapMessage{num: num}
		applyFetchFields(m, fields)
		msgs = append(msgs, m)
	}
	f.msgs = msgs
	return nil
}

func (f *Folder) Close(ctx context.Context, expunge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cl, err := f.store.connClient()
	if err == nil {
		if expunge {
			cl.command("EXPUNGE")
		}
		cl.command("CLOSE")
	}
	f.mode = store.ModeClosed
	return nil
}

func (f *Folder) Exists(ctx context.Context) (bool, error) {
	cl, err := f.store.connClient()
	if err != nil {
		return false, err
	}
	_, _, err = cl.command("STATUS %s (MESSAGES)", quoteMailbox(f.mailboxName()))
	return err == nil, nil
}

func (f *Folder) Create(ctx context.Context, kind store.FolderCreateKind) error {
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	_, _, err = cl.command("CREATE %s", quoteMailbox(f.mailboxName()))
	return err
}

func (f *Folder) Destroy(ctx context.Context) error {
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	_, _, err = cl.command("DELETE %s", quoteMailbox(f.mailboxName()))
	return err
}

func (f *Folder) Rename(ctx context.Context, newPath []string) error {
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	newName := strings.Join(newPath, "/")
	_, _, err = cl.command("RENAME %s %s", quoteMailbox(f.mailboxName()), quoteMailbox(newName))
	if err != nil {
		return err
	}
	f.path = newPath
	return nil
}

func (f *Folder) MessageCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs), nil
}

func (f *Folder) Status(ctx context.Context) (count, unseen int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, f.unseen, nil
}

func (f *Folder) Messages(ctx context.Context, set store.MessageSet) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for _, m := range f.msgs {
		key := m.num
		if set.IsUID() {
			key = m.uid
		}
		if inSet(set, key) {
			out = append(out, &Message{folder: f, msg: m})
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
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	items := "FLAGS UID RFC822.SIZE INTERNALDATE"
	wantHeader := attrs.Has(store.AttrFullHeader) || attrs.Has(store.AttrEnvelope)
	wantBody := attrs.Has(store.AttrStructure)
	if wantHeader {
		items += " BODY.PEEK[HEADER]"
	}
	if wantBody {
		items += " BODY.PEEK[]"
	}

	for i, sm := range msgs {
		m, ok := sm.(*Message)
		if !ok {
			continue
		}
		if m.msg.fetched.Has(attrs) {
			if progress != nil {
				progress(int64(i+1), int64(len(msgs)))
			}
			continue
		}
		untagged, _, err := cl.command("FETCH %d (%s)", m.msg.num, items)
		if err != nil {
			return fmt.Errorf("imapstore: FETCH: %v", err)
		}
		for _, l := range untagged {
			num, fields, ok := parseFetchLine(l)
			if !ok || num != m.msg.num {
				continue
			}
			applyFetchFields(m.msg, fields)
		}
		m.msg.fetched |= attrs
		if progress != nil {
			progress(int64(i+1), int64(len(msgs)))
		}
	}
	return nil
}

func (f *Folder) AddMessage(ctx context.Context, msg io.Reader, size int64, flags store.Flags, internalDate interface{}) (store.MessageSet, error) {
	cl, err := f.store.connClient()
	if err != nil {
		return store.MessageSet{}, err
	}
	data, err := io.ReadAll(msg)
	if err != nil {
		return store.MessageSet{}, err
	}
	flagStr := flagsToIMAP(flags)
	tag := cl.nextTag()
	line := fmt.Sprintf("%s APPEND %s", tag, quoteMailbox(f.mailboxName()))
	if flagStr != "" {
		line += " (" + flagStr + ")"
	}
	line += fmt.Sprintf(" {%d}", len(data))
	if err := cl.writeLine(line); err != nil {
		return store.MessageSet{}, err
	}
	cont, err := cl.readLine()
	if err != nil {
		return store.MessageSet{}, err
	}
	if !strings.HasPrefix(cont, "+") {
		return store.MessageSet{}, fmt.Errorf("imapstore: APPEND: server refused continuation: %s", cont)
	}
	if err := cl.writeRaw(data); err != nil {
		return store.MessageSet{}, err
	}
	if err := cl.writeLine(""); err != nil {
		return store.MessageSet{}, err
	}
	_, tagLine, err := cl.readUntilTag(tag)
	if err != nil {
		return store.MessageSet{}, err
	}
	if !strings.Contains(tagLine, "OK") {
		return store.MessageSet{}, fmt.Errorf("imapstore: APPEND failed: %s", tagLine)
	}
	appendUID := bracketInts(tagLine, "APPENDUID")
	f.mu.Lock()
	if err := f.refreshLocked(cl); err != nil {
		f.mu.Unlock()
		return store.MessageSet{}, err
	}
	f.mu.Unlock()
	if len(appendUID) == 2 {
		return store.UIDSet(uint32(appendUID[1])), nil
	}
	return store.MessageSet{}, nil
}

func (f *Folder) CopyMessages(ctx context.Context, destPath []string, set store.MessageSet) (store.MessageSet, error) {
	cl, err := f.store.connClient()
	if err != nil {
		return store.MessageSet{}, err
	}
	seq := seqSetString(set)
	cmd := "COPY"
	if set.IsUID() {
		cmd = "UID COPY"
	}
	_, _, err = cl.command("%s %s %s", cmd, seq, quoteMailbox(strings.Join(destPath, "/")))
	return store.MessageSet{}, err
}

func (f *Folder) DeleteMessages(ctx context.Context, set store.MessageSet) error {
	return f.SetMessageFlags(ctx, set, store.FlagDeleted, store.FlagAdd)
}

func (f *Folder) SetMessageFlags(ctx context.Context, set store.MessageSet, flags store.Flags, op store.FlagOp) error {
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	flagStr := flagsToIMAP(flags)
	var prefix string
	switch op {
	case store.FlagAdd:
		prefix = "+"
	case store.FlagRemove:
		prefix = "-"
	}
	seq := seqSetString(set)
	cmd := "STORE"
	if set.IsUID() {
		cmd = "UID STORE"
	}
	untagged, _, err := cl.command("%s %s %sFLAGS (%s)", cmd, seq, prefix, flagStr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range untagged {
		num, fields, ok := parseFetchLine(l)
		if !ok {
			continue
		}
		for _, m := range f.msgs {
			if m.num == num {
				applyFetchFields(m, fields)
			}
		}
	}
	return nil
}

func (f *Folder) Expunge(ctx context.Context) error {
	cl, err := f.store.connClient()
	if err != nil {
		return err
	}
	if _, _, err := cl.command("EXPUNGE"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshLocked(cl)
}

// Message is an IMAP-backed store.Message.
type Message struct {
	folder *Folder
	msg    *imapMessage
}

func (m *Message) Number() uint32 { return m.msg.num }

func (m *Message) UID() (uint32, bool) {
	if m.msg.uid == 0 {
		return 0, false
	}
	return m.msg.uid, true
}

func (m *Message) Fetched() store.FetchAttributes { return m.msg.fetched }

func (m *Message) Size() (int64, error) {
	if !m.msg.fetched.Has(store.AttrSize) {
		return 0, &store.UnfetchedObject{Attribute: "SIZE"}
	}
	return m.msg.size, nil
}

func (m *Message) Flags() (store.Flags, error) {
	if !m.msg.fetched.Has(store.AttrFlags) {
		return 0, &store.UnfetchedObject{Attribute: "FLAGS"}
	}
	return m.msg.flags, nil
}

func (m *Message) Header() (header.Header, error) {
	if !m.msg.fetched.Has(store.AttrFullHeader) {
		return header.Header{}, &store.UnfetchedObject{Attribute: "FULL_HEADER"}
	}
	return m.msg.header, nil
}

func (m *Message) Structure() (*mime.BodyPart, error) {
	if !m.msg.fetched.Has(store.AttrStructure) {
		return nil, &store.UnfetchedObject{Attribute: "STRUCTURE"}
	}
	bp := mime.NewBodyPart()
	if _, err := bp.Parse(component.DefaultParsingContext(), m.msg.raw, 0, len(m.msg.raw)); err != nil {
		return nil, err
	}
	return bp, nil
}

func (m *Message) Extract(ctx context.Context, out io.Writer, progress store.Progress) error {
	if !m.msg.fetched.Has(store.AttrStructure) {
		return &store.UnfetchedObject{Attribute: "STRUCTURE"}
	}
	_, err := out.Write(m.msg.raw)
	if progress != nil {
		progress(int64(len(m.msg.raw)), int64(len(m.msg.raw)))
	}
	return err
}

func (m *Message) ExtractPart(ctx context.Context, part *mime.BodyPart, out io.Writer, progress store.Progress, start, length int64) error {
	if part.Body == nil || part.Body.Content == nil {
		return nil
	}
	return part.Body.Content.Extract(out, nil)
}

// --- wire protocol plumbing ---

// client drives the tagged command/response dialog over a Socket,
// handling the one case spec §4.13's sketch needs: a {n}-delimited
// literal embedded in an otherwise line-oriented response.
type client struct {
	sock socket.Socket
	r    *bufio.Reader
	w    *bufio.Writer
	tag  int64
}

func newClient(sock socket.Socket) *client {
	return &client{sock: sock, r: bufio.NewReader(sock), w: bufio.NewWriter(sock)}
}

func (c *client) Close() error { return c.sock.Close() }

func (c *client) nextTag() string {
	n := atomic.AddInt64(&c.tag, 1)
	return fmt.Sprintf("a%d", n)
}

func (c *client) writeLine(line string) error {
	if _, err := c.w.WriteString(line + "\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *client) writeRaw(b []byte) error {
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	return c.w.Flush()
}

// readLine reads one logical response line, inlining any trailing
// "{n}" literal announcement by reading exactly n raw bytes and
// continuing to accumulate until the terminating CRLF.
func (c *client) readLine() (string, error) {
	var sb strings.Builder
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		trimmed := strings.TrimRight(line, "\r\n")
		if n, ok := trailingLiteralSize(trimmed); ok {
			lit := make([]byte, n)
			if _, err := io.ReadFull(c.r, lit); err != nil {
				return "", err
			}
			sb.Write(lit)
			continue
		}
		return sb.String(), nil
	}
}

func trailingLiteralSize(line string) (int, bool) {
	if !strings.HasSuffix(line, "}") {
		return 0, false
	}
	idx := strings.LastIndexByte(line, '{')
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(line[idx+1 : len(line)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// command sends a tagged command and collects every untagged ("*") line
// up to and including the tagged completion line, returning an error if
// the completion isn't OK.
func (c *client) command(format string, args ...interface{}) (untagged []string, tagLine string, err error) {
	tag := c.nextTag()
	line := tag + " " + fmt.Sprintf(format, args...)
	if err := c.writeLine(line); err != nil {
		return nil, "", err
	}
	return c.readUntilTag(tag)
}

func (c *client) readUntilTag(tag string) (untagged []string, tagLine string, err error) {
	prefix := tag + " "
	for {
		l, err := c.readLine()
		if err != nil {
			return untagged, "", err
		}
		l = strings.TrimRight(l, "\r\n")
		if strings.HasPrefix(l, prefix) {
			if !strings.Contains(l, "OK") {
				return untagged, l, fmt.Errorf("imapstore: %s", l)
			}
			return untagged, l, nil
		}
		untagged = append(untagged, l)
	}
}

// --- FETCH response parsing ---

// parseFetchLine extracts the message number and the raw "(...)" field
// blob from an untagged "* N FETCH (...)" line.
func parseFetchLine(line string) (num uint32, fields string, ok bool) {
	words := strings.Fields(line)
	if len(words) < 3 || words[0] != "*" || strings.ToUpper(words[2]) != "FETCH" {
		return 0, "", false
	}
	n, err := strconv.ParseUint(words[1], 10, 32)
	if err != nil {
		return 0, "", false
	}
	open := strings.IndexByte(line, '(')
	shut := strings.LastIndexByte(line, ')')
	if open < 0 || shut < 0 || shut <= open {
		return uint32(n), "", true
	}
	return uint32(n), line[open+1 : shut], true
}

// applyFetchFields scans a FETCH field blob for the items this sketch
// supports, tolerating any it doesn't recognise.
func applyFetchFields(m *imapMessage, fields string) {
	if idx := indexWord(fields, "UID"); idx >= 0 {
		if n, ok := intAfter(fields, idx+len("UID")); ok {
			m.uid = uint32(n)
		}
	}
	if idx := indexWord(fields, "RFC822.SIZE"); idx >= 0 {
		if n, ok := intAfter(fields, idx+len("RFC822.SIZE")); ok {
			m.size = n
		}
	}
	if idx := indexWord(fields, "FLAGS"); idx >= 0 {
		rest := fields[idx+len("FLAGS"):]
		open := strings.IndexByte(rest, '(')
		shut := strings.IndexByte(rest, ')')
		if open >= 0 && shut > open {
			m.flags = flagsFromIMAP(rest[open+1 : shut])
		}
	}
	if idx := indexWord(fields, "INTERNALDATE"); idx >= 0 {
		rest := strings.TrimSpace(fields[idx+len("INTERNALDATE"):])
		if strings.HasPrefix(rest, `"`) {
			if end := strings.IndexByte(rest[1:], '"'); end >= 0 {
				m.internal = rest[1 : end+1]
			}
		}
	}
	if idx := indexWord(fields, "BODY[HEADER]"); idx >= 0 {
		if raw, ok := literalAfter(fields, idx+len("BODY[HEADER]")); ok {
			h, err := parseHeaderBytes(raw)
			if err == nil {
				m.header = h
			}
		}
	}
	if idx := indexWord(fields, "BODY[]"); idx >= 0 {
		if raw, ok := literalAfter(fields, idx+len("BODY[]")); ok {
			m.raw = raw
			if m.header.Entries == nil {
				if h, err := parseHeaderBytes(raw); err == nil {
					m.header = h
				}
			}
		}
	}
}

func indexWord(s, word string) int {
	upper := strings.ToUpper(s)
	return strings.Index(upper, word)
}

func intAfter(s string, pos int) (int64, bool) {
	rest := strings.TrimSpace(s[pos:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	return n, err == nil
}

// literalAfter finds the "{n}" literal marker following pos (our
// readLine already inlined the raw bytes right after it) and returns the
// n bytes that follow the marker in s.
func literalAfter(s string, pos int) ([]byte, bool) {
	rest := s[pos:]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return nil, false
	}
	end := strings.IndexByte(rest[start:], '}')
	if end < 0 {
		return nil, false
	}
	end += start
	n, err := strconv.Atoi(rest[start+1 : end])
	if err != nil {
		return nil, false
	}
	litStart := end + 1
	if strings.HasPrefix(rest[litStart:], "\r\n") {
		litStart += 2
	}
	if litStart+n > len(rest) {
		n = len(rest) - litStart
	}
	return []byte(rest[litStart : litStart+n]), true
}

func parseHeaderBytes(raw []byte) (header.Header, error) {
	r := header.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	return r.ReadMIMEHeader(false)
}

func flagsToIMAP(flags store.Flags) string {
	var names []string
	if flags&store.FlagSeen != 0 {
		names = append(names, `\Seen`)
	}
	if flags&store.FlagReplied != 0 {
		names = append(names, `\Answered`)
	}
	if flags&store.FlagMarked != 0 {
		names = append(names, `\Flagged`)
	}
	if flags&store.FlagDeleted != 0 {
		names = append(names, `\Deleted`)
	}
	if flags&store.FlagDraft != 0 {
		names = append(names, `\Draft`)
	}
	return strings.Join(names, " ")
}

func flagsFromIMAP(s string) store.Flags {
	var flags store.Flags
	for _, f := range strings.Fields(s) {
		switch strings.ToLower(f) {
		case `\seen`:
			flags |= store.FlagSeen
		case `\recent`:
			flags |= store.FlagRecent
		case `\answered`:
			flags |= store.FlagReplied
		case `\flagged`:
			flags |= store.FlagMarked
		case `\deleted`:
			flags |= store.FlagDeleted
		case `\draft`:
			flags |= store.FlagDraft
		}
	}
	return flags
}

func seqSetString(set store.MessageSet) string {
	if len(set.Ranges) == 0 {
		return "1:*"
	}
	parts := make([]string, len(set.Ranges))
	for i, r := range set.Ranges {
		if r.From == r.To {
			parts[i] = strconv.FormatUint(uint64(r.From), 10)
		} else {
			parts[i] = fmt.Sprintf("%d:%d", r.From, r.To)
		}
	}
	return strings.Join(parts, ",")
}

// quoteString renders s as an IMAP quoted string, escaping backslash and
// double-quote.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// quoteMailbox renders a hierarchical mailbox name for the wire: encode
// to modified UTF-7 (mailboxname.go), then quote.
func quoteMailbox(name string) string {
	return quoteString(encodeMailboxUTF7(name))
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }
func unb64(s string) []byte {
	b, _ := base64.StdEncoding.DecodeString(s)
	return b
}
