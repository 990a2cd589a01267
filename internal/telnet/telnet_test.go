package telnet

import (
	"bytes"
	"testing"
)

func TestFeedStripsIACAndPassesData(t *testing.T) {
	var f Filter
	out := f.Feed([]byte{'h', 'i', iac, iac, 'x'})
	if !bytes.Equal(out, []byte{'h', 'i', iac, 'x'}) {
		t.Fatalf("got %v", out)
	}
}

func TestRespondRefusesUnsupportedOption(t *testing.T) {
	var f Filter
	f.Feed([]byte{iac, do, 42})
	replies := f.DrainReplies()
	if len(replies) != 1 || !bytes.Equal(replies[0], []byte{iac, wont, 42}) {
		t.Fatalf("got %v", replies)
	}
}

func TestRespondAgreesToNAWS(t *testing.T) {
	var f Filter
	f.Feed([]byte{iac, do, optNAWS})
	replies := f.DrainReplies()
	if len(replies) != 1 || !bytes.Equal(replies[0], []byte{iac, will, optNAWS}) {
		t.Fatalf("got %v", replies)
	}
}

func TestNAWSSubnegotiationUpdatesSize(t *testing.T) {
	var f Filter
	msg := []byte{iac, sb, optNAWS, 0, 80, 0, 24, iac, se}
	f.Feed(msg)
	if f.Width != 80 || f.Height != 24 {
		t.Fatalf("got %dx%d", f.Width, f.Height)
	}
}

func TestEscapedIACInsideSubnegotiation(t *testing.T) {
	var f Filter
	// width=255 encoded as 0x00 0xFF, escaped as IAC IAC inside the
	// subnegotiation payload.
	msg := []byte{iac, sb, optNAWS, 0, iac, iac, 0, 24, iac, se}
	f.Feed(msg)
	if f.Width != 255 || f.Height != 24 {
		t.Fatalf("got %dx%d", f.Width, f.Height)
	}
}

func TestDontRequiresNoReply(t *testing.T) {
	var f Filter
	f.Feed([]byte{iac, dont, optEcho})
	if len(f.DrainReplies()) != 0 {
		t.Fatalf("expected no reply to an unsolicited DONT")
	}
}
