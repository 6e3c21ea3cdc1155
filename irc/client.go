package irc

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/goircd/ircd/internal/logging"
)

// inputBufferCap bounds the per-session input accumulator. A session
// that exceeds it without producing a complete line is disconnected.
const inputBufferCap = 8 * 1024

// Client is the server-side state for one connection. All protocol
// state is owned by the server's event loop; only the outbound queue is
// shared with this session's writer goroutine.
type Client struct {
	id       string // session table key
	conn     net.Conn
	server   *Server
	hostname string

	nickname string
	username string
	realname string

	inbuf []byte
	out   *sendQueue

	passwordOk bool
	hasNick    bool
	hasUser    bool
	registered bool
	operator   bool // server-wide operator, distinct from channel operator

	channels map[string]bool // joined channel names, resolved via the registry

	disconnected bool
	quitReason   string
	connectedAt  time.Time
}

// Nickname returns the session's nickname, "" until NICK is accepted.
func (c *Client) Nickname() string { return c.nickname }

// prefix returns the nick!user@host source for lines this session
// originates.
func (c *Client) prefix() string {
	return FormatHostmask(c.nickname, c.username, c.hostname)
}

// markDisconnected flags the session for teardown at the next sweep.
// The first reason wins.
func (c *Client) markDisconnected(reason string) {
	if c.disconnected {
		return
	}
	c.disconnected = true
	c.quitReason = reason
}

// feed appends bytes read from the connection, frames them into lines
// and dispatches each command in arrival order. Runs on the event loop.
func (c *Client) feed(data []byte) {
	c.inbuf = append(c.inbuf, data...)

	lines, rest := ExtractLines(c.inbuf)
	c.inbuf = rest

	for _, line := range lines {
		if c.disconnected {
			return
		}
		metricMessagesReceived.Inc()
		msg := ParseMessage(line)
		if msg == nil {
			// Malformed line, dropped silently.
			continue
		}
		c.handleMessage(msg)
	}

	if len(c.inbuf) > inputBufferCap {
		c.inbuf = nil
		c.send("ERROR :Closing Link: input buffer exceeded")
		c.markDisconnected("input buffer exceeded")
	}
}

// handleMessage dispatches one parsed command.
func (c *Client) handleMessage(msg *Message) {
	logging.Debug("command received",
		zap.String("session", c.id),
		zap.String("command", msg.Command),
		zap.Strings("params", msg.Params),
	)

	switch msg.Command {
	case "PASS":
		c.handlePass(msg.Params)
	case "NICK":
		c.handleNick(msg.Params)
	case "USER":
		c.handleUser(msg.Params)
	case "OPER":
		c.handleOper(msg.Params)
	case "PING":
		c.handlePing(msg.Params)
	case "PONG":
		// Keep-alive acknowledgment, nothing to do.
	case "JOIN":
		c.handleJoin(msg.Params)
	case "PART":
		c.handlePart(msg.Params)
	case "TOPIC":
		c.handleTopic(msg.Params)
	case "MODE":
		c.handleMode(msg.Params)
	case "INVITE":
		c.handleInvite(msg.Params)
	case "KICK":
		c.handleKick(msg.Params)
	case "NAMES":
		c.handleNames(msg.Params)
	case "LIST":
		c.handleList(msg.Params)
	case "MOTD":
		c.handleMotd(msg.Params)
	case "PRIVMSG":
		c.handlePrivmsg(msg.Params)
	case "NOTICE":
		c.handleNotice(msg.Params)
	case "QUIT":
		reason := "Quit"
		if len(msg.Params) > 0 {
			reason = msg.Params[0]
		}
		c.markDisconnected(reason)
	default:
		c.sendNumeric(ERR_UNKNOWNCOMMAND, fmt.Sprintf("%s :Unknown command", msg.Command))
	}
}

// handlePass handles a PASS command.
func (c *Client) handlePass(params []string) {
	if c.registered {
		c.sendNumeric(ERR_ALREADYREGISTRED, ":You may not reregister")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PASS :Not enough parameters")
		return
	}

	if params[0] != c.server.password {
		c.sendNumeric(ERR_PASSWDMISMATCH, ":Password incorrect")
		c.markDisconnected("Bad password")
		return
	}

	c.passwordOk = true
}

// handleNick handles a NICK command.
func (c *Client) handleNick(params []string) {
	if len(params) < 1 {
		c.sendNumeric(ERR_NONICKNAMEGIVEN, ":No nickname given")
		return
	}

	newNick := params[0]

	if !isValidNickname(newNick) {
		c.sendNumeric(ERR_ERRONEUSNICKNAME, fmt.Sprintf("%s :Erroneous nickname", newNick))
		return
	}

	if other, exists := c.server.nicks[newNick]; exists && other != c {
		c.sendNumeric(ERR_NICKNAMEINUSE, fmt.Sprintf("%s :Nickname is already in use", newNick))
		return
	}

	oldNick := c.nickname
	if oldNick != "" {
		delete(c.server.nicks, oldNick)
	}
	c.nickname = newNick
	c.hasNick = true
	c.server.nicks[newNick] = c

	// A rename after registration is announced to every channel the
	// session has joined.
	if c.registered && oldNick != newNick {
		line := fmt.Sprintf(":%s!%s@%s NICK %s", oldNick, c.username, c.hostname, newNick)
		c.send(line)
		for name := range c.channels {
			if ch := c.server.getChannel(name); ch != nil {
				ch.Broadcast(line, c)
			}
		}
		return
	}

	c.tryCompleteRegistration()
}

// handleUser handles a USER command.
func (c *Client) handleUser(params []string) {
	if c.registered {
		c.sendNumeric(ERR_ALREADYREGISTRED, ":You may not reregister")
		return
	}

	if len(params) < 4 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "USER :Not enough parameters")
		return
	}

	// The shared connection password must have been accepted first.
	if !c.passwordOk {
		c.sendNumeric(ERR_PASSWDMISMATCH, ":Password required")
		return
	}

	c.username = params[0]
	c.realname = params[3]
	c.hasUser = true

	c.tryCompleteRegistration()
}

// tryCompleteRegistration fires the welcome burst once password,
// nickname and username have all been accepted. The transition happens
// at most once per session.
func (c *Client) tryCompleteRegistration() {
	if c.registered || !c.passwordOk || !c.hasNick || !c.hasUser {
		return
	}

	c.registered = true

	cfg := c.server.cfg
	c.sendNumeric(RPL_WELCOME, fmt.Sprintf(":Welcome to the %s IRC Network %s",
		cfg.Server.Network, c.prefix()))
	c.sendNumeric(RPL_YOURHOST, fmt.Sprintf(":Your host is %s, running version %s",
		cfg.Server.Name, serverVersion))
	c.sendNumeric(RPL_CREATED, fmt.Sprintf(":This server was created %s",
		c.server.startedAt.Format(time.RFC1123)))
	c.sendNumeric(RPL_MYINFO, fmt.Sprintf("%s %s o itkl", cfg.Server.Name, serverVersion))

	c.sendMotd()

	logging.Info("client registered",
		zap.String("session", c.id),
		zap.String("nick", c.nickname),
		zap.String("host", c.hostname),
	)
}

// handleOper handles an OPER command: server-operator login against the
// bcrypt-hashed credentials from configuration.
func (c *Client) handleOper(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "OPER :Not enough parameters")
		return
	}

	if !c.server.checkOperCredentials(params[0], params[1]) {
		c.sendNumeric(ERR_PASSWDMISMATCH, ":Password incorrect")
		return
	}

	c.operator = true
	c.sendNumeric(RPL_YOUREOPER, ":You are now an IRC operator")
	c.sendMessage("MODE", c.nickname, "+o")
}

// handlePing handles a PING command.
func (c *Client) handlePing(params []string) {
	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PING :Not enough parameters")
		return
	}
	c.sendMessage("PONG", params[0])
}

// handlePrivmsg handles a PRIVMSG command.
func (c *Client) handlePrivmsg(params []string) {
	c.deliver("PRIVMSG", params, true)
}

// handleNotice handles a NOTICE command. Notices never generate error
// replies.
func (c *Client) handleNotice(params []string) {
	c.deliver("NOTICE", params, false)
}

// deliver routes a PRIVMSG/NOTICE to a channel or a nickname.
func (c *Client) deliver(command string, params []string, replyErrors bool) {
	if !c.registered {
		if replyErrors {
			c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		}
		return
	}

	if len(params) < 2 {
		if replyErrors {
			c.sendNumeric(ERR_NEEDMOREPARAMS, command+" :Not enough parameters")
		}
		return
	}

	target := params[0]
	text := params[1]
	line := fmt.Sprintf(":%s %s %s :%s", c.prefix(), command, target, text)

	if target != "" && (target[0] == '#' || target[0] == '&') {
		ch := c.server.getChannel(target)
		if ch == nil {
			if replyErrors {
				c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", target))
			}
			return
		}
		if !ch.HasClient(c) {
			if replyErrors {
				c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", target))
			}
			return
		}
		ch.Broadcast(line, c)
		c.server.record(target, c.nickname, "message", text)
		return
	}

	targetClient, exists := c.server.nicks[target]
	if !exists {
		if replyErrors {
			c.sendNumeric(ERR_NOSUCHNICK, fmt.Sprintf("%s :No such nick/channel", target))
		}
		return
	}
	targetClient.send(line)
}

// send queues a raw line for transmission.
func (c *Client) send(line string) {
	metricMessagesSent.Inc()
	c.out.Push([]byte(line + "\r\n"))
}

// sendMessage queues a server-prefixed IRC message.
func (c *Client) sendMessage(command string, params ...string) {
	msg := &Message{
		Prefix:  c.server.cfg.Server.Name,
		Command: command,
		Params:  params,
	}
	c.send(msg.String())
}

// sendNumeric queues a numeric reply. The target nickname falls back to
// "*" before NICK is accepted.
func (c *Client) sendNumeric(numeric int, message string) {
	nick := c.nickname
	if nick == "" {
		nick = "*"
	}
	c.send(fmt.Sprintf(":%s %03d %s %s", c.server.cfg.Server.Name, numeric, nick, message))
}

// readLoop moves bytes from the connection into the event loop. It is
// the only goroutine reading from the connection.
func (c *Client) readLoop() {
	defer c.server.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.server.post(event{kind: evData, client: c, data: data})
		}
		if err != nil {
			c.server.post(event{kind: evReadError, client: c, err: err})
			return
		}
	}
}

// writeLoop drains the outbound queue. It is the only goroutine writing
// to the connection, which preserves line order under backpressure. On
// exit it closes the connection, which also unblocks readLoop.
func (c *Client) writeLoop() {
	defer c.server.wg.Done()
	defer c.conn.Close()

	for range c.out.wake {
		if err := c.out.Flush(c.conn); err != nil {
			c.server.post(event{kind: evWriteError, client: c, err: err})
			return
		}
	}

	// Queue closed by teardown: best-effort final drain.
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	c.out.Flush(c.conn)
}
