// Package maildirstore implements a maildir-backed Store/Folder/Message
// (spec §6's persisted state section and §4.12's contract).
//
// Grounded on original_source/src/messaging/maildirUtils.cpp: the
// tmp/new/cur layout, the "<unix-time>.<pid>.<6-random-chars>" message id
// format (generateId), the ":2,<flags>" filename suffix
// (buildFilename/buildFlags/extractFlags), and the "<name>.directory"
// nested-subfolder naming (getFolderFSPath) — translated into Go's
// os/ioutil-free idiom the way the teacher's spilldb/gram code reads and
// writes plain files directly rather than through a VFS abstraction.
package maildirstore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"mailkit.dev/mailkit/component"
	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
	"mailkit.dev/mailkit/net/store"
	"mailkit.dev/mailkit/platform"
)

const (
	tmpDir = "tmp"
	curDir = "cur"
	newDir = "new"
)

// Store is a maildir-backed store.Store rooted at a filesystem directory.
type Store struct {
	Root string

	// PasswordHash, when set, is the local bcrypt credential that
	// Authenticate checks passwords against (the maildir store has no
	// server of its own to delegate authentication to). Connect does not
	// consult it.
	PasswordHash []byte

	// Platform supplies the filesystem, clock, PID, and random source used
	// for folder creation, listing, Create/Rename/Exists, AddMessage
	// delivery, and unique-filename generation; nil defaults to
	// platform.Default{}. Destroy, flag renames, Expunge, and the message
	// Size/Header/Structure/Extract reads use the os package directly.
	Platform platform.Handler
}

// NewStore returns a Store rooted at root, which must already exist.
func NewStore(root string) *Store { return &Store{Root: root} }

func (s *Store) fs() platform.Filesystem {
	if s.Platform == nil {
		return platform.Default{}.Filesystem()
	}
	return s.Platform.Filesystem()
}

func (s *Store) handler() platform.Handler {
	if s.Platform == nil {
		return platform.Default{}
	}
	return s.Platform
}

// SetPassword hashes password with bcrypt and stores it as the local
// credential Authenticate checks against.
func (s *Store) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("maildirstore: SetPassword: %v", err)
	}
	s.PasswordHash = hash
	return nil
}

// Authenticate checks password against the hash set by SetPassword. A
// Store with no PasswordHash accepts every password (local single-user
// mailboxes commonly skip this).
func (s *Store) Authenticate(password string) error {
	if len(s.PasswordHash) == 0 {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(password)); err != nil {
		return fmt.Errorf("maildirstore: authentication failed: %v", err)
	}
	return nil
}

func (s *Store) Connect(ctx context.Context) error { return nil }

func (s *Store) DefaultFolder(ctx context.Context) (store.Folder, error) {
	return s.Folder(ctx, []string{"INBOX"})
}

func (s *Store) RootFolder(ctx context.Context) (store.Folder, error) {
	return s.Folder(ctx, nil)
}

func (s *Store) Folder(ctx context.Context, path []string) (store.Folder, error) {
	return &Folder{store: s, path: path}, nil
}

func (s *Store) IsSecuredConnection() bool { return false }
func (s *Store) ConnectionInfo() string    { return "maildir://" + s.Root }

// fsPath returns the filesystem directory for folderPath, nesting each
// parent component as ".<name>.directory" per maildirUtils.getFolderFSPath.
func (s *Store) fsPath(folderPath []string) string {
	p := s.Root
	for i, comp := range folderPath {
		if i < len(folderPath)-1 {
			p = filepath.Join(p, "."+comp+".directory")
		} else {
			p = filepath.Join(p, comp)
		}
	}
	return p
}

// Folder is a maildir folder: a directory with tmp/new/cur subdirectories.
type Folder struct {
	store *Store
	path  []string

	mu   sync.Mutex
	mode store.FolderOpenMode
}

func (f *Folder) Path() []string            { return f.path }
func (f *Folder) Mode() store.FolderOpenMode { return f.mode }

func (f *Folder) dir() string { return f.store.fsPath(f.path) }

func (f *Folder) Open(ctx context.Context, mode store.FolderOpenMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != store.ModeClosed {
		return &store.FolderAlreadyOpen{Path: strings.Join(f.path, "/")}
	}
	for _, sub := range []string{tmpDir, curDir, newDir} {
		if err := f.store.fs().MkdirAll(filepath.Join(f.dir(), sub), 0700); err != nil {
			return fmt.Errorf("maildirstore: open %q: %v", f.dir(), err)
		}
	}
	f.mode = mode
	return nil
}

func (f *Folder) Close(ctx context.Context, expunge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if expunge {
		if err := f.expungeLocked(); err != nil {
			return err
		}
	}
	f.mode = store.ModeClosed
	return nil
}

func (f *Folder) Exists(ctx context.Context) (bool, error) {
	_, err := f.store.fs().Stat(f.dir())
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *Folder) Create(ctx context.Context, kind store.FolderCreateKind) error {
	return f.store.fs().MkdirAll(f.dir(), 0700)
}

// Destroy recurses, which platform.Filesystem's narrow interface has no
// single call for; it uses os.RemoveAll directly rather than Remove-per-file.
func (f *Folder) Destroy(ctx context.Context) error {
	return os.RemoveAll(f.dir())
}

func (f *Folder) Rename(ctx context.Context, newPath []string) error {
	oldDir := f.dir()
	f.path = newPath
	return f.store.fs().Rename(oldDir, f.dir())
}

// entry is one on-disk message: id + current flags + which subdirectory
// it lives in (new or cur).
type entry struct {
	id    string
	flags store.Flags
	sub   string
	num   uint32
}

func (f *Folder) listLocked() ([]entry, error) {
	var entries []entry
	for _, sub := range []string{newDir, curDir} {
		names, err := readDirNames(f.store.fs(), filepath.Join(f.dir(), sub))
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			id := extractID(name)
			flags := store.FlagRecent
			if sub == curDir {
				flags = extractFlags(name)
			}
			entries = append(entries, entry{id: id, flags: flags, sub: sub})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for i := range entries {
		entries[i].num = uint32(i + 1)
	}
	return entries, nil
}

func readDirNames(fs platform.Filesystem, dir string) ([]string, error) {
	ents, err := fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, len(ents))
	for i, e := range ents {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func (f *Folder) MessageCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.listLocked()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (f *Folder) Status(ctx context.Context) (count, unseen int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.listLocked()
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.flags&store.FlagSeen == 0 {
			unseen++
		}
	}
	return len(entries), unseen, nil
}

func (f *Folder) Messages(ctx context.Context, set store.MessageSet) ([]store.Message, error) {
	f.mu.Lock()
	entries, err := f.listLocked()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var msgs []store.Message
	for _, e := range entries {
		if inSet(set, e.num) {
			msgs = append(msgs, &Message{folder: f, entry: e})
		}
	}
	return msgs, nil
}

func inSet(set store.MessageSet, num uint32) bool {
	if len(set.Ranges) == 0 {
		return true
	}
	for _, r := range set.Ranges {
		// maildir UIDs equal sequence numbers in this backend, so UID and
		// number ranges match the same way.
		if num >= r.From && num <= r.To {
			return true
		}
	}
	return false
}

func (f *Folder) FetchMessages(ctx context.Context, msgs []store.Message, attrs store.FetchAttributes, progress store.Progress) error {
	for i, m := range msgs {
		mm, ok := m.(*Message)
		if !ok {
			continue
		}
		mm.fetched |= attrs
		if progress != nil {
			progress(int64(i+1), int64(len(msgs)))
		}
	}
	return nil
}

func (f *Folder) AddMessage(ctx context.Context, src io.Reader, size int64, flags store.Flags, internalDate interface{}) (store.MessageSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, err := generateID(f.store.handler())
	if err != nil {
		return store.MessageSet{}, fmt.Errorf("maildirstore: AddMessage: %v", err)
	}
	tmpPath := filepath.Join(f.dir(), tmpDir, id)
	tf, err := f.store.fs().OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return store.MessageSet{}, fmt.Errorf("maildirstore: AddMessage: %v", err)
	}
	if _, err := io.Copy(tf, src); err != nil {
		tf.Close()
		f.store.fs().Remove(tmpPath)
		return store.MessageSet{}, err
	}
	if err := tf.Close(); err != nil {
		f.store.fs().Remove(tmpPath)
		return store.MessageSet{}, err
	}

	filename := buildFilename(id, flags)
	finalPath := filepath.Join(f.dir(), curDir, filename)
	if err := f.store.fs().Rename(tmpPath, finalPath); err != nil {
		return store.MessageSet{}, fmt.Errorf("maildirstore: AddMessage: %v", err)
	}

	entries, err := f.listLocked()
	if err != nil {
		return store.MessageSet{}, err
	}
	for _, e := range entries {
		if e.id == id {
			return store.NumberSet(e.num), nil
		}
	}
	return store.MessageSet{}, nil
}

func (f *Folder) CopyMessages(ctx context.Context, destPath []string, set store.MessageSet) (store.MessageSet, error) {
	dest, err := f.store.Folder(ctx, destPath)
	if err != nil {
		return store.MessageSet{}, err
	}
	destFolder := dest.(*Folder)
	if err := destFolder.Open(ctx, store.ReadWrite); err != nil && !isAlreadyOpen(err) {
		return store.MessageSet{}, err
	}

	msgs, err := f.Messages(ctx, set)
	if err != nil {
		return store.MessageSet{}, err
	}
	var assigned []uint32
	for _, m := range msgs {
		mm := m.(*Message)
		var buf bytes.Buffer
		if err := mm.Extract(ctx, &buf, nil); err != nil {
			return store.MessageSet{}, err
		}
		newSet, err := destFolder.AddMessage(ctx, &buf, int64(buf.Len()), mm.entry.flags, nil)
		if err != nil {
			return store.MessageSet{}, err
		}
		for _, r := range newSet.Ranges {
			assigned = append(assigned, r.From)
		}
	}
	ranges := make([]store.MessageRange, len(assigned))
	for i, n := range assigned {
		ranges[i] = store.MessageRange{From: n, To: n}
	}
	return store.MessageSet{Ranges: ranges}, nil
}

func isAlreadyOpen(err error) bool {
	_, ok := err.(*store.FolderAlreadyOpen)
	return ok
}

func (f *Folder) DeleteMessages(ctx context.Context, set store.MessageSet) error {
	return f.SetMessageFlags(ctx, set, store.FlagDeleted, store.FlagAdd)
}

func (f *Folder) SetMessageFlags(ctx context.Context, set store.MessageSet, flags store.Flags, op store.FlagOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.listLocked()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !inSet(set, e.num) {
			continue
		}
		var newFlags store.Flags
		switch op {
		case store.FlagSet:
			newFlags = flags
		case store.FlagAdd:
			newFlags = e.flags | flags
		case store.FlagRemove:
			newFlags = e.flags &^ flags
		}
		if err := f.rewriteFlagsLocked(e, newFlags); err != nil {
			return err
		}
	}
	return nil
}

func (f *Folder) rewriteFlagsLocked(e entry, newFlags store.Flags) error {
	oldName := buildFilename(e.id, e.flags)
	if e.sub == newDir {
		oldName = e.id // new/ messages have no flag suffix yet
	}
	oldPath := filepath.Join(f.dir(), e.sub, oldName)
	newPath := filepath.Join(f.dir(), curDir, buildFilename(e.id, newFlags))
	if oldPath == newPath {
		return nil
	}
	return os.Rename(oldPath, newPath)
}

func (f *Folder) Expunge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expungeLocked()
}

func (f *Folder) expungeLocked() error {
	entries, err := f.listLocked()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.flags&store.FlagDeleted == 0 {
			continue
		}
		name := e.id
		if e.sub == curDir {
			name = buildFilename(e.id, e.flags)
		}
		if err := os.Remove(filepath.Join(f.dir(), e.sub, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Message is a maildir-backed store.Message.
type Message struct {
	folder  *Folder
	entry   entry
	fetched store.FetchAttributes
}

func (m *Message) Number() uint32                    { return m.entry.num }
func (m *Message) UID() (uint32, bool)                { return m.entry.num, true }
func (m *Message) Fetched() store.FetchAttributes     { return m.fetched }

func (m *Message) path() string {
	name := m.entry.id
	if m.entry.sub == curDir {
		name = buildFilename(m.entry.id, m.entry.flags)
	}
	return filepath.Join(m.folder.dir(), m.entry.sub, name)
}

func (m *Message) Size() (int64, error) {
	fi, err := os.Stat(m.path())
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (m *Message) Flags() (store.Flags, error) {
	if !m.fetched.Has(store.AttrFlags) {
		return 0, &store.UnfetchedObject{Attribute: "flags"}
	}
	return m.entry.flags, nil
}

func (m *Message) Header() (header.Header, error) {
	f, err := os.Open(m.path())
	if err != nil {
		return header.Header{}, err
	}
	defer f.Close()
	r := header.NewReader(bufio.NewReader(f))
	return r.ReadMIMEHeader(false)
}

func (m *Message) Structure() (*mime.BodyPart, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		return nil, err
	}
	bp := mime.NewBodyPart()
	if _, err := bp.Parse(component.DefaultParsingContext(), data, 0, len(data)); err != nil {
		return nil, err
	}
	return bp, nil
}

func (m *Message) Extract(ctx context.Context, out io.Writer, progress store.Progress) error {
	f, err := os.Open(m.path())
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(out, f)
	return err
}

func (m *Message) ExtractPart(ctx context.Context, part *mime.BodyPart, out io.Writer, progress store.Progress, start, length int64) error {
	if part.Body == nil || part.Body.Content == nil {
		return nil
	}
	return part.Body.Content.Extract(out, nil)
}

// generateID returns a "<unix-time>.<pid>.<6-random-chars>" message id,
// per maildirUtils::generateId, drawing its clock/PID/RNG from the
// injected platform.Handler rather than querying the host directly
// (spec §6).
func generateID(h platform.Handler) (string, error) {
	rs, err := randomString(h, 6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%s", h.Now().Unix(), h.PID(), rs), nil
}

func randomString(h platform.Handler, n int) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	raw, err := h.RandomBytes(n)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// extractID strips the ":2,<flags>" suffix, per maildirUtils::extractId.
func extractID(filename string) string {
	if i := strings.LastIndexByte(filename, ':'); i >= 0 {
		return filename[:i]
	}
	return filename
}

// extractFlags parses the ":2,<flags>" suffix, per
// maildirUtils::extractFlags.
func extractFlags(filename string) store.Flags {
	i := strings.LastIndexByte(filename, ':')
	if i < 0 {
		return 0
	}
	var flags store.Flags
	for _, c := range filename[i+1:] {
		switch c {
		case 'R', 'r':
			flags |= store.FlagReplied
		case 'S', 's':
			flags |= store.FlagSeen
		case 'T', 't':
			flags |= store.FlagDeleted
		case 'F', 'f':
			flags |= store.FlagMarked
		case 'P', 'p':
			flags |= store.FlagPassed
		}
	}
	return flags
}

// buildFilename renders "<id>:2,<flags>", per
// maildirUtils::buildFilename/buildFlags.
func buildFilename(id string, flags store.Flags) string {
	var sb strings.Builder
	sb.WriteString(id)
	sb.WriteString(":2,")
	// Letters must be written in ASCII order for interoperability with
	// other maildir readers, per the original's buildFlags ordering.
	if flags&store.FlagMarked != 0 {
		sb.WriteByte('F')
	}
	if flags&store.FlagPassed != 0 {
		sb.WriteByte('P')
	}
	if flags&store.FlagReplied != 0 {
		sb.WriteByte('R')
	}
	if flags&store.FlagSeen != 0 {
		sb.WriteByte('S')
	}
	if flags&store.FlagDeleted != 0 {
		sb.WriteByte('T')
	}
	return sb.String()
}
