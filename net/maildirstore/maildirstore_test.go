package maildirstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mailkit.dev/mailkit/net/store"
)

func openInbox(t *testing.T) (*Store, *Folder) {
	t.Helper()
	root := t.TempDir()
	s := NewStore(root)
	f, err := s.Folder(context.Background(), []string{"INBOX"})
	if err != nil {
		t.Fatal(err)
	}
	folder := f.(*Folder)
	if err := folder.Open(context.Background(), store.ReadWrite); err != nil {
		t.Fatal(err)
	}
	return s, folder
}

func TestOpenCreatesTmpNewCurDirs(t *testing.T) {
	_, f := openInbox(t)
	for _, sub := range []string{"tmp", "new", "cur"} {
		if _, err := os.Stat(filepath.Join(f.dir(), sub)); err != nil {
			t.Fatalf("%s directory missing: %v", sub, err)
		}
	}
}

func TestOpenTwiceFailsWithFolderAlreadyOpen(t *testing.T) {
	_, f := openInbox(t)
	err := f.Open(context.Background(), store.ReadWrite)
	if err == nil {
		t.Fatal("expected FolderAlreadyOpen error")
	}
	if _, ok := err.(*store.FolderAlreadyOpen); !ok {
		t.Fatalf("err = %T, want *store.FolderAlreadyOpen", err)
	}
}

func TestAddMessageThenCount(t *testing.T) {
	_, f := openInbox(t)
	ctx := context.Background()
	msg := "From: a@example.com\r\n\r\nhello\r\n"
	set, err := f.AddMessage(ctx, strings.NewReader(msg), int64(len(msg)), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Ranges) != 1 {
		t.Fatalf("AddMessage returned %d ranges, want 1", len(set.Ranges))
	}

	count, err := f.MessageCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("MessageCount = %d, want 1", count)
	}
}

func TestAddMessageGoesToCurWithSeenFlagSuffix(t *testing.T) {
	_, f := openInbox(t)
	ctx := context.Background()
	msg := "Subject: x\r\n\r\nbody"
	if _, err := f.AddMessage(ctx, strings.NewReader(msg), int64(len(msg)), store.FlagSeen, nil); err != nil {
		t.Fatal(err)
	}
	names, err := readDirNames(f.store.fs(), filepath.Join(f.dir(), curDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Fatalf("expected 1 file in cur/, got %d", len(names))
	}
	if !strings.Contains(names[0], ":2,") || !strings.Contains(names[0], "S") {
		t.Fatalf("filename %q should carry the S (seen) flag suffix", names[0])
	}
}

func TestDeleteThenExpungeRemovesMessage(t *testing.T) {
	_, f := openInbox(t)
	ctx := context.Background()
	msg := "Subject: x\r\n\r\nbody"
	set, err := f.AddMessage(ctx, strings.NewReader(msg), int64(len(msg)), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.DeleteMessages(ctx, set); err != nil {
		t.Fatal(err)
	}
	if err := f.Expunge(ctx); err != nil {
		t.Fatal(err)
	}
	count, err := f.MessageCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("MessageCount after expunge = %d, want 0", count)
	}
}

func TestExtractReturnsOriginalBytes(t *testing.T) {
	_, f := openInbox(t)
	ctx := context.Background()
	msg := "Subject: x\r\n\r\nbody text here"
	set, err := f.AddMessage(ctx, strings.NewReader(msg), int64(len(msg)), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := f.Messages(ctx, set)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	var buf bytes.Buffer
	if err := msgs[0].(*Message).Extract(ctx, &buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != msg {
		t.Fatalf("Extract = %q, want %q", buf.String(), msg)
	}
}

func TestAuthenticateWithNoPasswordHashAcceptsAnything(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Authenticate("whatever"); err != nil {
		t.Fatalf("Authenticate with no hash set should accept any password: %v", err)
	}
}

func TestSetPasswordThenAuthenticateRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.SetPassword("correct horse"); err != nil {
		t.Fatal(err)
	}
	if err := s.Authenticate("correct horse"); err != nil {
		t.Fatalf("Authenticate with the right password should succeed: %v", err)
	}
	if err := s.Authenticate("wrong password"); err == nil {
		t.Fatal("Authenticate with the wrong password should fail")
	}
}

func TestSubFolderUsesDirectorySuffix(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	fsPath := s.fsPath([]string{"Work", "Archive"})
	want := filepath.Join(root, ".Work.directory", "Archive")
	if fsPath != want {
		t.Fatalf("fsPath = %q, want %q", fsPath, want)
	}
}
