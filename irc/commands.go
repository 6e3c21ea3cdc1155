package irc

import "fmt"

// serverVersion is the version token used in the welcome burst.
const serverVersion = "goircd-1.0"

// handleMotd handles a MOTD command.
func (c *Client) handleMotd(_ []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}
	c.sendMotd()
}

// sendMotd sends the configured message of the day, or 422 when none is
// configured.
func (c *Client) sendMotd() {
	motd := c.server.cfg.Server.MOTD
	if len(motd) == 0 {
		c.sendNumeric(ERR_NOMOTD, ":MOTD File is missing")
		return
	}

	c.sendNumeric(RPL_MOTDSTART, fmt.Sprintf(":- %s Message of the Day -", c.server.cfg.Server.Name))
	for _, line := range motd {
		c.sendNumeric(RPL_MOTD, fmt.Sprintf(":- %s", line))
	}
	c.sendNumeric(RPL_ENDOFMOTD, ":End of MOTD command")
}
