package server

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/benj-edwards/ascii-processing-unit/internal/cellgrid"
	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
	"github.com/benj-edwards/ascii-processing-unit/internal/session"
)

// registry tracks every connected client session and every connected
// application (game) connection's event feed. It is the one piece of
// cross-session/cross-connection shared state in this package, guarded
// by a single mutex -- unlike a Session, which is never touched
// outside its own goroutine, the registry is inherently shared.
type registry struct {
	mu         sync.Mutex
	sessions   map[string]*sessionEntry
	apps       map[int]chan protocol.Response
	nextApp    int
	nextSessID int

	// sharesTo mirrors each session's displaySharesTo set: for a
	// source session id, the set of target session ids currently
	// sharing from it. Session itself only tracks the other half
	// (displaySharesFrom, as sharedFrom) since that's all compositing
	// needs; this exists purely as bookkeeping a future list_sessions
	// response or admin view could surface.
	sharesTo map[string]map[string]bool

	// observer, when set, receives every broadcast response in
	// addition to the subscribed application connections -- the event
	// audit log and the admin diagnostics feed both hang off this
	// rather than being woven into broadcast's own signature.
	observer func(protocol.Response)
}

type sessionEntry struct {
	session *session.Session
	addr    string
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[string]*sessionEntry),
		apps:     make(map[int]chan protocol.Response),
		sharesTo: make(map[string]map[string]bool),
	}
}

// recordShare updates sharesTo[sourceID] to include or exclude
// targetID, called from a session's notifyShare callback whenever its
// own share_display/unshare_display processing changes what it shares
// from.
func (r *registry) recordShare(sourceID, targetID string, shared bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	targets, ok := r.sharesTo[sourceID]
	if !ok {
		targets = make(map[string]bool)
		r.sharesTo[sourceID] = targets
	}
	if shared {
		targets[targetID] = true
	} else {
		delete(targets, targetID)
	}
}

// nextSessionID allocates a session id of the form
// session_<ip-dashed>_<n>, where n is a monotonic counter shared
// across every session this registry has ever issued -- every id
// carries a counter, matching spec's explicit
// "session id derived from peer address + monotonic counter" scheme
// rather than the original's bare format!("session_{}", addr) with
// no counter at all.
func (r *registry) nextSessionID(addr string) string {
	r.mu.Lock()
	r.nextSessID++
	n := r.nextSessID
	r.mu.Unlock()
	return fmt.Sprintf("session_%s_%d", ipDashed(addr), n)
}

// ipDashed renders just the host part of addr (dropping the port) with
// every "." replaced by "-", e.g. "10.0.0.1:4532" -> "10-0-0-1".
func ipDashed(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return strings.ReplaceAll(host, ".", "-")
}

func (r *registry) register(id string, s *session.Session, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &sessionEntry{session: s, addr: addr}
}

func (r *registry) unregister(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *registry) get(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// all returns a stable snapshot of every currently registered session.
func (r *registry) all() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, entry := range r.sessions {
		out = append(out, entry.session)
	}
	return out
}

func (r *registry) sessionInfos() []protocol.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.SessionInfo, 0, len(r.sessions))
	for id, entry := range r.sessions {
		out = append(out, protocol.SessionInfo{
			ID:          id,
			Address:     entry.addr,
			ConnectedAt: entry.session.ConnectedAt.Unix(),
		})
	}
	return out
}

// resolveBackground implements the signature session.New wants for
// its resolveBackground parameter: looking up another session's most
// recently published Background snapshot by id.
func (r *registry) resolveBackground(id string) *cellgrid.Grid {
	s, ok := r.get(id)
	if !ok {
		return nil
	}
	return s.BackgroundSnapshot()
}

// subscribeApp registers a new application connection's event feed,
// returning its subscriber id (for unsubscribeApp) and the channel
// broadcast sends will be delivered on. The channel is buffered so a
// momentarily slow reader doesn't stall every session's flush.
func (r *registry) subscribeApp() (int, chan protocol.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextApp
	r.nextApp++
	ch := make(chan protocol.Response, 1000)
	r.apps[id] = ch
	return id, ch
}

func (r *registry) unsubscribeApp(id int) {
	r.mu.Lock()
	ch, ok := r.apps[id]
	delete(r.apps, id)
	r.mu.Unlock()
	if ok {
		close(ch)
	}
}

// broadcast fans a response out to every connected application. A
// subscriber whose buffer is full has it dropped rather than blocking
// every session's flush on one slow reader -- the broadcast-channel
// "lagged" behavior original_source relies on.
func (r *registry) broadcast(resp protocol.Response) {
	r.mu.Lock()
	observer := r.observer
	for _, ch := range r.apps {
		select {
		case ch <- resp:
		default:
		}
	}
	r.mu.Unlock()

	if observer != nil {
		observer(resp)
	}
}
