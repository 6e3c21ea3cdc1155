package irc_test

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGircClient runs a real IRC client library against the server:
// registration, channel join and message delivery between two clients.
func TestGircClient(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end client test in short mode")
	}

	_, addr := startServer(t, nil)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	// A raw peer waits in the channel for the girc client's message.
	peer := dialServer(t, addr)
	peer.register(t, "peer")
	peer.send(t, "JOIN #e2e")
	peer.expect(t, " 366 ")

	client := girc.New(girc.Config{
		Server:     host,
		Port:       port,
		Nick:       "gclient",
		User:       "gclient",
		Name:       "girc test client",
		ServerPass: testPassword,
	})

	var once sync.Once
	joined := make(chan struct{})

	client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		c.Cmd.Join("#e2e")
	})
	client.Handlers.Add(girc.JOIN, func(c *girc.Client, e girc.Event) {
		if e.Source != nil && e.Source.Name == c.GetNick() {
			c.Cmd.Message("#e2e", "hello from girc")
			once.Do(func() { close(joined) })
		}
	})

	go client.Connect()
	defer client.Close()

	select {
	case <-joined:
	case <-time.After(10 * time.Second):
		t.Fatal("girc client did not join within deadline")
	}

	peer.expect(t, ":gclient!gclient@")
	line := peer.expect(t, "PRIVMSG #e2e :hello from girc")
	assert.Contains(t, line, "gclient")
}
