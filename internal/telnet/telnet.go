// Package telnet implements a minimal, reactive-only telnet option
// negotiator: it never volunteers an IAC WILL/DO, but always answers
// a peer's request the same way (refuse everything except suppress
// go-ahead and the NAWS window-size option), and strips IAC sequences
// out of the data stream before they reach the terminal emulator.
package telnet

import "encoding/binary"

const (
	iac  byte = 255
	will byte = 251
	wont byte = 252
	do   byte = 253
	dont byte = 254
	sb   byte = 250
	se   byte = 240

	optEcho   byte = 1
	optSGA    byte = 3 // suppress go-ahead
	optNAWS   byte = 31
)

type filterState int

const (
	stNormal filterState = iota
	stIAC
	stCommand
	stSub
	stSubIAC
)

// Filter scans a byte stream for IAC sequences, stripping them out
// and answering negotiation requests on the fly. Data bytes pass
// through Feed's return value; any reply the peer should receive is
// appended to Replies for the caller to flush.
type Filter struct {
	state   filterState
	command byte
	subOpt  byte
	subBuf  []byte

	Replies [][]byte

	// Width and Height are updated in place whenever the peer sends a
	// NAWS subnegotiation, so a session can pick up the client's
	// reported size without polling.
	Width, Height int
}

// Feed processes one chunk of incoming bytes and returns the data
// bytes that were not part of a telnet command, in order.
func (f *Filter) Feed(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if d, ok := f.feedByte(b); ok {
			out = append(out, d)
		}
	}
	return out
}

func (f *Filter) feedByte(b byte) (byte, bool) {
	switch f.state {
	case stNormal:
		if b == iac {
			f.state = stIAC
			return 0, false
		}
		return b, true
	case stIAC:
		switch b {
		case iac:
			f.state = stNormal
			return iac, true
		case sb:
			f.state = stSub
			f.subBuf = f.subBuf[:0]
		case will, wont, do, dont:
			f.command = b
			f.state = stCommand
		default:
			f.state = stNormal
		}
		return 0, false
	case stCommand:
		f.respond(f.command, b)
		f.state = stNormal
		return 0, false
	case stSub:
		if b == iac {
			f.state = stSubIAC
			return 0, false
		}
		f.subBuf = append(f.subBuf, b)
		return 0, false
	case stSubIAC:
		if b == se {
			f.handleSub()
			f.state = stNormal
		} else if b == iac {
			f.subBuf = append(f.subBuf, iac)
			f.state = stSub
		} else {
			f.state = stSub
		}
		return 0, false
	}
	return 0, false
}

func (f *Filter) handleSub() {
	if len(f.subBuf) < 1 {
		return
	}
	opt := f.subBuf[0]
	payload := f.subBuf[1:]
	if opt == optNAWS && len(payload) >= 4 {
		f.Width = int(binary.BigEndian.Uint16(payload[0:2]))
		f.Height = int(binary.BigEndian.Uint16(payload[2:4]))
	}
}

// respond answers a peer's WILL/WONT/DO/DONT with the minimal stance
// this filter supports: agree to suppress-go-ahead and NAWS, refuse
// everything else.
func (f *Filter) respond(cmd, opt byte) {
	switch cmd {
	case do:
		if opt == optSGA || opt == optNAWS {
			f.Replies = append(f.Replies, []byte{iac, will, opt})
		} else {
			f.Replies = append(f.Replies, []byte{iac, wont, opt})
		}
	case will:
		if opt == optSGA || opt == optNAWS {
			f.Replies = append(f.Replies, []byte{iac, do, opt})
		} else {
			f.Replies = append(f.Replies, []byte{iac, dont, opt})
		}
	case dont, wont:
		// no reply required; the peer is only confirming a refusal.
	}
}

// DrainReplies returns and clears any pending negotiation replies.
func (f *Filter) DrainReplies() [][]byte {
	r := f.Replies
	f.Replies = nil
	return r
}

// EncodeNAWS builds the IAC SB NAWS ... IAC SE subnegotiation payload
// announcing a new terminal size. This is sent proactively whenever
// the hosting window resizes, which is distinct from (and allowed
// under) this filter's reactive-only stance on the WILL/DO handshake
// itself -- the handshake happens once; size updates after it are
// ordinary follow-up traffic for an option already agreed to.
func EncodeNAWS(cols, rows int) []byte {
	buf := make([]byte, 9)
	buf[0], buf[1], buf[2] = iac, sb, optNAWS
	binary.BigEndian.PutUint16(buf[3:5], uint16(cols))
	binary.BigEndian.PutUint16(buf[5:7], uint16(rows))
	buf[7], buf[8] = iac, se
	return buf
}

// ServerRawModeNegotiation builds the fixed handshake a telnet server
// sends a freshly accepted client to get character-at-a-time input
// with no local echo: the server announces it will do the echoing
// itself, and that there's no line-buffering to negotiate around. This
// is sent once, proactively, by the accepting side of the connection
// -- a distinct role from Filter's reactive stance when this engine is
// itself the one connecting out to a remote terminal host.
func ServerRawModeNegotiation() []byte {
	return []byte{iac, will, optEcho, iac, will, optSGA}
}
