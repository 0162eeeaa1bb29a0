// Package store implements the protocol-agnostic Store/Transport/Folder/
// Message contract (spec §4.12): the interfaces every concrete backend
// (maildir, SMTP, POP3, IMAP) implements, plus the shared MessageSet,
// FetchAttributes, and connection-error kinds.
//
// Grounded on the teacher's imap/imap.go interfaces (Session/Mailbox) and
// imapserver.DataStore, generalized from IMAP-specific method names into
// the protocol-neutral Store/Folder/Message vocabulary spec §4.12 uses,
// so maildir/SMTP/POP3/IMAP backends can all implement the same
// interfaces.
package store

import (
	"context"
	"fmt"
	"io"

	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
)

// ConnectionErrorKind classifies why a Transport/Store connection failed
// (spec §4.12).
type ConnectionErrorKind int

const (
	DNS ConnectionErrorKind = iota
	Refused
	TLS
	Auth
	Greeting
	Timeout
	Cancelled
)

func (k ConnectionErrorKind) String() string {
	switch k {
	case DNS:
		return "DNS"
	case Refused:
		return "Refused"
	case TLS:
		return "Tls"
	case Auth:
		return "Auth"
	case Greeting:
		return "Greeting"
	case Timeout:
		return "Timeout"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ConnectionError reports a connection-level failure (spec §4.12).
type ConnectionError struct {
	Kind ConnectionErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store: connection error (%s): %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// UnfetchedObject is returned by an accessor on a message attribute that
// has not been fetched yet (spec §4.12's explicit lazy-fetch contract).
type UnfetchedObject struct {
	Attribute string
}

func (e *UnfetchedObject) Error() string {
	return fmt.Sprintf("store: attribute %q was not fetched", e.Attribute)
}

// FolderAlreadyOpen is returned when a folder path is opened a second
// time within a session by a protocol that cannot alias the open (spec
// §4.12).
type FolderAlreadyOpen struct{ Path string }

func (e *FolderAlreadyOpen) Error() string {
	return fmt.Sprintf("store: folder %q is already open", e.Path)
}

// Progress reports bytes transferred so far out of total (0 if unknown).
type Progress func(current, total int64)

// Transport sends outbound messages (spec §4.12).
type Transport interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Disconnect(ctx context.Context) error
	Send(ctx context.Context, from string, to []string, msg io.Reader, size int64, progress Progress) error
	SendMessage(ctx context.Context, msg *mime.BodyPart, progress Progress) error
}

// Store is a mailbox provider (spec §4.12).
type Store interface {
	Connect(ctx context.Context) error
	DefaultFolder(ctx context.Context) (Folder, error)
	RootFolder(ctx context.Context) (Folder, error)
	Folder(ctx context.Context, path []string) (Folder, error)
	IsSecuredConnection() bool
	ConnectionInfo() string
}

// FolderOpenMode is a Folder's open mode.
type FolderOpenMode int

const (
	ModeClosed FolderOpenMode = iota
	ReadOnly
	ReadWrite
)

// FolderCreateKind names what a newly created folder can hold.
type FolderCreateKind int

const (
	HoldsMessages FolderCreateKind = iota
	HoldsFolders
	HoldsBoth
)

// FlagOp is the operation setMessageFlags applies.
type FlagOp int

const (
	FlagSet FlagOp = iota
	FlagAdd
	FlagRemove
)

// Flags is the message flag bitset (spec §3).
type Flags uint8

const (
	FlagSeen Flags = 1 << iota
	FlagRecent
	FlagReplied
	FlagDeleted
	FlagMarked
	FlagPassed
	FlagDraft
)

// FetchAttributes is the bitset of message attributes a fetch call may
// populate (spec §3). Fetching never clears an already-fetched bit.
type FetchAttributes uint16

const (
	AttrFlags FetchAttributes = 1 << iota
	AttrEnvelope
	AttrContentInfo
	AttrStructure
	AttrFullHeader
	AttrSize
	AttrUID
	AttrImportance
	AttrCustomHeaders
)

// Has reports whether every bit in want is set in a.
func (a FetchAttributes) Has(want FetchAttributes) bool { return a&want == want }

// MessageRange is a contiguous range of message numbers or UIDs (never
// both within one range, spec §3).
type MessageRange struct {
	From, To uint32
	IsUID    bool
}

// MessageSet is an ordered set of MessageRanges, all of the same kind.
type MessageSet struct {
	Ranges []MessageRange
}

// IsUID reports whether this set addresses UIDs (true) or sequence
// numbers (false). An empty set reports false.
func (s MessageSet) IsUID() bool {
	return len(s.Ranges) > 0 && s.Ranges[0].IsUID
}

// NumberSet builds a MessageSet from sequence numbers.
func NumberSet(nums ...uint32) MessageSet {
	ranges := make([]MessageRange, len(nums))
	for i, n := range nums {
		ranges[i] = MessageRange{From: n, To: n}
	}
	return MessageSet{Ranges: ranges}
}

// UIDSet builds a MessageSet from UIDs.
func UIDSet(uids ...uint32) MessageSet {
	ranges := make([]MessageRange, len(uids))
	for i, u := range uids {
		ranges[i] = MessageRange{From: u, To: u, IsUID: true}
	}
	return MessageSet{Ranges: ranges}
}

// Folder is a mailbox folder (spec §4.12). Its open/closed state machine
// is enforced by implementations, not this interface.
type Folder interface {
	Path() []string
	Mode() FolderOpenMode
	Open(ctx context.Context, mode FolderOpenMode) error
	Close(ctx context.Context, expunge bool) error
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, kind FolderCreateKind) error
	Destroy(ctx context.Context) error
	Rename(ctx context.Context, newPath []string) error

	MessageCount(ctx context.Context) (int, error)
	Status(ctx context.Context) (count, unseen int, err error)
	Messages(ctx context.Context, set MessageSet) ([]Message, error)
	FetchMessages(ctx context.Context, msgs []Message, attrs FetchAttributes, progress Progress) error
	AddMessage(ctx context.Context, msg io.Reader, size int64, flags Flags, internalDate interface{}) (MessageSet, error)
	CopyMessages(ctx context.Context, destPath []string, set MessageSet) (MessageSet, error)
	DeleteMessages(ctx context.Context, set MessageSet) error
	SetMessageFlags(ctx context.Context, set MessageSet, flags Flags, op FlagOp) error
	Expunge(ctx context.Context) error
}

// Message is a lazily-populated message handle (spec §4.12). Accessing an
// attribute that has not been fetched returns *UnfetchedObject.
type Message interface {
	Number() uint32
	UID() (uint32, bool)
	Fetched() FetchAttributes
	Size() (int64, error)
	Flags() (Flags, error)
	Header() (header.Header, error)
	Structure() (*mime.BodyPart, error)
	Extract(ctx context.Context, out io.Writer, progress Progress) error
	ExtractPart(ctx context.Context, part *mime.BodyPart, out io.Writer, progress Progress, start, length int64) error
}
