// Command mailkit is a small example CLI wiring a maildir store and an
// SMTP transport together: "list" shows a folder's messages, "send"
// composes and delivers one.
//
// Grounded on cmd/spilld/main.go's flag-parsing and log.SetFlags(0)
// startup style, scaled down from a long-running server to a one-shot
// tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"mailkit.dev/mailkit/address"
	"mailkit.dev/mailkit/message"
	"mailkit.dev/mailkit/net/maildirstore"
	"mailkit.dev/mailkit/net/smtptransport"
	"mailkit.dev/mailkit/net/store"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mailkit list -maildir DIR [-folder NAME]")
	fmt.Fprintln(os.Stderr, "       mailkit send -maildir DIR -from ADDR -to ADDR -subject TEXT -body TEXT")
	os.Exit(2)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	flagMaildir := fs.String("maildir", "", "maildir root directory")
	flagFolder := fs.String("folder", "INBOX", "folder to list")
	fs.Parse(args)
	if *flagMaildir == "" {
		usage()
	}

	ctx := context.Background()
	st := maildirstore.NewStore(*flagMaildir)
	folder, err := st.Folder(ctx, strings.Split(*flagFolder, "/"))
	if err != nil {
		log.Fatal(err)
	}
	if err := folder.Open(ctx, store.ReadOnly); err != nil {
		log.Fatal(err)
	}
	defer folder.Close(ctx, false)

	msgs, err := folder.Messages(ctx, store.MessageSet{})
	if err != nil {
		log.Fatal(err)
	}
	if err := folder.FetchMessages(ctx, msgs, store.AttrFlags|store.AttrFullHeader|store.AttrSize, nil); err != nil {
		log.Fatal(err)
	}
	for _, m := range msgs {
		h, err := m.Header()
		if err != nil {
			log.Printf("message %d: %v", m.Number(), err)
			continue
		}
		size, _ := m.Size()
		flags, _ := m.Flags()
		fmt.Printf("%4d  %6d bytes  %-20s  %s\n", m.Number(), size, flagsString(flags), h.Get("Subject"))
	}
}

func flagsString(f store.Flags) string {
	var names []string
	if f&store.FlagSeen != 0 {
		names = append(names, "Seen")
	}
	if f&store.FlagReplied != 0 {
		names = append(names, "Replied")
	}
	if f&store.FlagDeleted != 0 {
		names = append(names, "Deleted")
	}
	if f&store.FlagMarked != 0 {
		names = append(names, "Flagged")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	flagMaildir := fs.String("maildir", "", "maildir root to save a copy into, optional")
	flagFrom := fs.String("from", "", "From address")
	flagTo := fs.String("to", "", "comma-separated To addresses")
	flagSubject := fs.String("subject", "", "Subject")
	flagBody := fs.String("body", "", "plain-text body")
	flagHost := fs.String("host", "", "submit directly to this host instead of resolving MX records")
	fs.Parse(args)
	if *flagFrom == "" || *flagTo == "" {
		usage()
	}

	from, err := address.ParseMailbox(*flagFrom)
	if err != nil {
		log.Fatalf("parse -from: %v", err)
	}
	var to []address.Mailbox
	for _, addr := range strings.Split(*flagTo, ",") {
		mb, err := address.ParseMailbox(strings.TrimSpace(addr))
		if err != nil {
			log.Fatalf("parse -to %q: %v", addr, err)
		}
		to = append(to, mb)
	}

	msg := message.New()
	msg.SetFrom(from)
	msg.SetTo(to)
	msg.SetSubject(*flagSubject)

	raw, err := composePlainText(msg, *flagBody)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	transport := smtptransport.NewTransport(smtptransport.Config{Host: *flagHost})
	if err := transport.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer transport.Disconnect(ctx)

	recipients := make([]string, len(to))
	for i, mb := range to {
		recipients[i] = mb.Addr
	}
	if err := transport.Send(ctx, from.Addr, recipients, strings.NewReader(raw), int64(len(raw)), nil); err != nil {
		log.Fatalf("send: %v", err)
	}
	log.Printf("sent to %s", strings.Join(recipients, ", "))

	if *flagMaildir != "" {
		st := maildirstore.NewStore(*flagMaildir)
		folder, err := st.Folder(ctx, []string{"Sent"})
		if err != nil {
			log.Fatal(err)
		}
		if err := folder.Open(ctx, store.ReadWrite); err != nil && !isAlreadyOpen(err) {
			log.Fatal(err)
		}
		if _, err := folder.AddMessage(ctx, strings.NewReader(raw), int64(len(raw)), store.FlagSeen, nil); err != nil {
			log.Printf("save to Sent: %v", err)
		}
	}
}

func isAlreadyOpen(err error) bool {
	_, ok := err.(*store.FolderAlreadyOpen)
	return ok
}

// composePlainText renders msg's headers followed by a single text/plain
// body, bypassing the component tree's Generate since a one-shot CLI
// message has no attachments or alternative parts to assemble.
func composePlainText(msg *message.Message, body string) (string, error) {
	var sb strings.Builder
	for _, e := range msg.Header.Entries {
		fmt.Fprintf(&sb, "%s: %s\r\n", e.Key, e.Value)
	}
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return sb.String(), nil
}
