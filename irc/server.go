package irc

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/goircd/ircd/internal/config"
	"github.com/goircd/ircd/internal/logging"
)

// Recorder receives channel events for persistence. Implementations
// must not block: the event loop calls Record inline.
type Recorder interface {
	Record(channel, nick, kind, text string)
}

type eventKind int

const (
	evConnect eventKind = iota
	evData
	evReadError
	evWriteError
	evSnapshot
)

// event is the unit of work delivered to the event loop. The loop is
// the only goroutine that touches the session and channel tables, so
// command handling needs no locking.
type event struct {
	kind   eventKind
	client *Client
	conn   net.Conn
	data   []byte
	err    error
	reply  chan Snapshot
}

// Snapshot is a point-in-time view of the registry, served through the
// event loop so readers never race command handling.
type Snapshot struct {
	StartedAt time.Time
	Sessions  int
	Channels  []ChannelSummary
}

// ChannelSummary describes one channel for the snapshot.
type ChannelSummary struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
	Topic   string `json:"topic"`
	Modes   string `json:"modes"`
}

// Server owns the listening socket, the session table keyed by session
// ID and the channel table keyed by name, and drives the event loop.
type Server struct {
	cfg      *config.Config
	port     int
	password string

	listener net.Listener
	events   chan event
	stopc    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sessions map[string]*Client
	nicks    map[string]*Client
	channels map[string]*Channel

	recorder  Recorder
	startedAt time.Time
}

// NewServer creates a server for the given port and shared connection
// password. Ambient settings come from cfg.
func NewServer(port int, password string, cfg *config.Config) *Server {
	return &Server{
		cfg:      cfg,
		port:     port,
		password: password,
		events:   make(chan event, 256),
		stopc:    make(chan struct{}),
		done:     make(chan struct{}),
		sessions: make(map[string]*Client),
		nicks:    make(map[string]*Client),
		channels: make(map[string]*Channel),
	}
}

// SetRecorder installs the channel-event recorder. Must be called
// before Run.
func (s *Server) SetRecorder(r Recorder) {
	s.recorder = r
}

// Setup binds and listens on the configured port. Setup errors are
// fatal: the server must not serve after a failed Setup.
func (s *Server) Setup() error {
	if s.port < 1 || s.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", s.port)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	s.listener = listener
	s.startedAt = time.Now()

	logging.Info("server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address. Valid after Setup.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run drives the event loop until Stop is called. All session and
// channel state is mutated only here; suspension happens only at the
// select.
func (s *Server) Run() {
	s.wg.Add(1)
	go s.acceptLoop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopc:
			s.shutdown()
			return
		case ev := <-s.events:
			s.handleEvent(ev)
			s.sweep()
		case <-ticker.C:
			s.checkRegistrationTimeouts()
			s.sweep()
		}
	}
}

// Stop requests shutdown. The event loop observes the request at its
// next wakeup; the listener is closed here so the accept loop unblocks
// immediately.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopc)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// acceptLoop accepts connections and hands them to the event loop.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.stopc:
				return
			default:
			}
			logging.Warn("accept failed", zap.Error(err))
			continue
		}
		s.post(event{kind: evConnect, conn: conn})
	}
}

// post delivers an event to the loop without blocking forever once the
// loop has exited.
func (s *Server) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Server) handleEvent(ev event) {
	switch ev.kind {
	case evConnect:
		s.addClient(ev.conn)
	case evData:
		// The session may have been torn down between the read and
		// this event; stale data is dropped.
		if s.sessions[ev.client.id] == ev.client {
			ev.client.feed(ev.data)
		}
	case evReadError, evWriteError:
		if s.sessions[ev.client.id] == ev.client {
			ev.client.markDisconnected("Connection closed")
		}
	case evSnapshot:
		ev.reply <- s.snapshot()
	}
}

// addClient registers a new session and starts its reader and writer.
func (s *Server) addClient(conn net.Conn) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	client := &Client{
		id:          uuid.NewString(),
		conn:        conn,
		server:      s,
		hostname:    host,
		out:         newSendQueue(),
		channels:    make(map[string]bool),
		connectedAt: time.Now(),
	}
	s.sessions[client.id] = client

	metricConnections.Inc()
	metricSessions.Set(float64(len(s.sessions)))

	s.wg.Add(2)
	go client.readLoop()
	go client.writeLoop()

	logging.Info("client connected",
		zap.String("session", client.id),
		zap.String("host", host),
	)
}

// sweep tears down every session flagged disconnected. Runs after each
// event so no session is destroyed mid-iteration of command handling.
func (s *Server) sweep() {
	for _, client := range s.sessions {
		if client.disconnected {
			s.teardown(client)
		}
	}
}

// teardown cascades a session's destruction: departure broadcasts to
// its channels, empty-channel removal, table removal, queue close. The
// writer goroutine closes the connection after its final drain, which
// also unblocks the reader.
func (s *Server) teardown(client *Client) {
	if client.registered {
		line := fmt.Sprintf(":%s QUIT :%s", client.prefix(), client.quitReason)
		for name := range client.channels {
			ch := s.channels[name]
			if ch == nil {
				continue
			}
			ch.RemoveClient(client)
			ch.Broadcast(line, nil)
			s.removeChannelIfEmpty(ch)
		}
	}
	client.channels = make(map[string]bool)

	if s.nicks[client.nickname] == client {
		delete(s.nicks, client.nickname)
	}
	delete(s.sessions, client.id)
	metricSessions.Set(float64(len(s.sessions)))

	client.out.Close()

	logging.Info("client disconnected",
		zap.String("session", client.id),
		zap.String("nick", client.nickname),
		zap.String("reason", client.quitReason),
	)
}

// checkRegistrationTimeouts disconnects sessions that have not finished
// the handshake within the grace period.
func (s *Server) checkRegistrationTimeouts() {
	timeout := time.Duration(s.cfg.Limits.RegistrationTimeout) * time.Second
	now := time.Now()

	for _, client := range s.sessions {
		if client.registered || client.disconnected {
			continue
		}
		if now.Sub(client.connectedAt) < timeout {
			continue
		}
		client.send("ERROR :Closing Link: registration timeout")
		client.markDisconnected("Registration timeout")
		metricRegistrationTimeouts.Inc()
	}
}

// shutdown closes the listener and force-closes every session with a
// shutdown notice, then waits for the per-connection goroutines.
func (s *Server) shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}

	for _, client := range s.sessions {
		client.send("ERROR :Closing Link: server shutting down")
		client.markDisconnected("Server shutting down")
	}
	s.sweep()

	close(s.done)
	s.wg.Wait()

	logging.Info("server stopped")
}

// getChannel resolves a channel name, nil when unknown.
func (s *Server) getChannel(name string) *Channel {
	return s.channels[name]
}

// createChannel creates a channel with creator as member and operator.
// Idempotent: an existing channel is returned unchanged.
func (s *Server) createChannel(name string, creator *Client) *Channel {
	if ch, exists := s.channels[name]; exists {
		return ch
	}

	ch := NewChannel(name, creator)
	s.channels[name] = ch
	metricChannels.Set(float64(len(s.channels)))

	logging.Info("channel created",
		zap.String("channel", name),
		zap.String("creator", creator.nickname),
	)
	return ch
}

// removeChannelIfEmpty destroys a channel the moment its last member
// has left. Channels never outlive their members.
func (s *Server) removeChannelIfEmpty(ch *Channel) {
	if ch.Len() > 0 {
		return
	}
	delete(s.channels, ch.name)
	metricChannels.Set(float64(len(s.channels)))

	logging.Info("channel removed", zap.String("channel", ch.name))
}

// channelList returns the channels sorted by name for deterministic
// listings.
func (s *Server) channelList() []*Channel {
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// checkOperCredentials verifies an OPER login against the configured
// bcrypt hashes.
func (s *Server) checkOperCredentials(username, password string) bool {
	for _, op := range s.cfg.Operators {
		if op.Username != username {
			continue
		}
		return bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) == nil
	}
	return false
}

// record forwards a channel event to the recorder, if one is installed.
func (s *Server) record(channel, nick, kind, text string) {
	if s.recorder != nil {
		s.recorder.Record(channel, nick, kind, text)
	}
}

// snapshot builds the registry view. Event-loop only.
func (s *Server) snapshot() Snapshot {
	snap := Snapshot{
		StartedAt: s.startedAt,
		Sessions:  len(s.sessions),
	}
	for _, ch := range s.channelList() {
		snap.Channels = append(snap.Channels, ChannelSummary{
			Name:    ch.Name(),
			Members: ch.Len(),
			Topic:   ch.Topic(),
			Modes:   ch.ModeString(),
		})
	}
	return snap
}

// GetSnapshot requests a registry snapshot through the event loop. It
// fails once the server has stopped or when the loop does not answer
// within the deadline.
func (s *Server) GetSnapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case s.events <- event{kind: evSnapshot, reply: reply}:
	case <-s.done:
		return Snapshot{}, errors.New("server stopped")
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-s.done:
		return Snapshot{}, errors.New("server stopped")
	case <-time.After(5 * time.Second):
		return Snapshot{}, errors.New("snapshot timed out")
	}
}
