package smtptransport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"

	"mailkit.dev/mailkit/header"
	"mailkit.dev/mailkit/mime"
)

// fakeSMTPServer speaks just enough of RFC 5321 to accept one delivery:
// EHLO, MAIL FROM, RCPT TO, DATA, QUIT.
func fakeSMTPServer(t *testing.T, ln net.Listener, received chan<- string) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		w := func(s string) { conn.Write([]byte(s)) }
		r := bufio.NewReader(conn)

		w("220 mail.example.com ESMTP ready\r\n")
		var inData bool
		var dataLines []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			if inData {
				if line == "." {
					inData = false
					if received != nil {
						received <- strings.Join(dataLines, "\r\n")
					}
					w("250 queued\r\n")
					continue
				}
				dataLines = append(dataLines, line)
				continue
			}

			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "EHLO"):
				w("250 mail.example.com\r\n")
			case strings.HasPrefix(upper, "MAIL FROM"):
				w("250 2.1.0 OK\r\n")
			case strings.HasPrefix(upper, "RCPT TO"):
				w("250 2.1.5 OK\r\n")
			case upper == "DATA":
				w("354 go ahead\r\n")
				inData = true
				dataLines = nil
			case upper == "QUIT":
				w("221 bye\r\n")
				return
			default:
				w("500 unrecognized\r\n")
			}
		}
	}()
}

func newTestTransport(t *testing.T, received chan<- string) *Transport {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	fakeSMTPServer(t, ln, received)

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return NewTransport(Config{Host: host, Port: port, LocalHostname: "client.example.com"})
}

func TestSendDeliversToDirectHost(t *testing.T) {
	received := make(chan string, 1)
	tr := newTestTransport(t, received)
	ctx := context.Background()

	body := "Subject: hi\r\n\r\nhello world"
	err := tr.Send(ctx, "alice@example.com", []string{"bob@example.com"}, strings.NewReader(body), int64(len(body)), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if !strings.Contains(got, "hello world") {
			t.Fatalf("server received %q, want to contain hello world", got)
		}
	default:
		t.Fatal("server never received a DATA payload")
	}
}

func TestSendInvokesProgress(t *testing.T) {
	tr := newTestTransport(t, nil)
	ctx := context.Background()
	body := "Subject: hi\r\n\r\nbody"

	var calls int
	progress := func(current, total int64) { calls++ }
	if err := tr.Send(ctx, "a@example.com", []string{"b@example.com"}, strings.NewReader(body), int64(len(body)), progress); err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Fatal("expected progress to be invoked at least once")
	}
}

func TestExtractEnvelopeFromMessageHeaders(t *testing.T) {
	msg := mime.NewBodyPart()
	msg.Header.Set(header.Key("From"), []byte("alice@example.com"))
	msg.Header.Set(header.Key("To"), []byte("bob@example.com, carol@example.com"))

	from, to := extractEnvelope(msg)
	if from != "alice@example.com" {
		t.Fatalf("from = %q", from)
	}
	if len(to) != 2 || to[0] != "bob@example.com" || to[1] != "carol@example.com" {
		t.Fatalf("to = %v", to)
	}
}

func TestConnectDisconnectTracksState(t *testing.T) {
	tr := NewTransport(Config{})
	ctx := context.Background()
	if tr.IsConnected() {
		t.Fatal("new transport should not be connected")
	}
	if err := tr.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if !tr.IsConnected() {
		t.Fatal("expected IsConnected after Connect")
	}
	if err := tr.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if tr.IsConnected() {
		t.Fatal("expected not connected after Disconnect")
	}
}
