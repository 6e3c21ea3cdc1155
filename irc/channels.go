package irc

import (
	"fmt"
	"strconv"
	"strings"
)

// handleJoin handles a JOIN command. The first successful join of an
// unknown name creates the channel with the joiner as its sole
// operator.
func (c *Client) handleJoin(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "JOIN :Not enough parameters")
		return
	}

	channelNames := strings.Split(params[0], ",")
	var channelKeys []string
	if len(params) > 1 {
		channelKeys = strings.Split(params[1], ",")
	}

	for i, channelName := range channelNames {
		var key string
		if i < len(channelKeys) {
			key = channelKeys[i]
		}
		c.joinChannel(channelName, key)
	}
}

func (c *Client) joinChannel(channelName, key string) {
	if !isValidChannelName(channelName) {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
		return
	}

	ch := c.server.getChannel(channelName)
	if ch != nil {
		if ch.HasClient(c) {
			return
		}

		if ch.IsInviteOnly() && !ch.IsInvited(c) && !c.operator {
			c.sendNumeric(ERR_INVITEONLYCHAN, fmt.Sprintf("%s :Cannot join channel (+i)", channelName))
			return
		}

		if ch.Key() != "" && ch.Key() != key && !c.operator {
			c.sendNumeric(ERR_BADCHANNELKEY, fmt.Sprintf("%s :Cannot join channel (+k)", channelName))
			return
		}

		if ch.UserLimit() > 0 && ch.Len() >= ch.UserLimit() && !c.operator {
			c.sendNumeric(ERR_CHANNELISFULL, fmt.Sprintf("%s :Cannot join channel (+l)", channelName))
			return
		}

		ch.ClearInvite(c)
		ch.AddClient(c)
	} else {
		ch = c.server.createChannel(channelName, c)
	}

	c.channels[channelName] = true

	ch.Broadcast(fmt.Sprintf(":%s JOIN %s", c.prefix(), channelName), nil)

	if topic := ch.Topic(); topic != "" {
		c.sendNumeric(RPL_TOPIC, fmt.Sprintf("%s :%s", channelName, topic))
	} else {
		c.sendNumeric(RPL_NOTOPIC, fmt.Sprintf("%s :No topic is set", channelName))
	}

	c.sendNames(channelName)
	c.server.record(channelName, c.nickname, "join", "")
}

// handlePart handles a PART command.
func (c *Client) handlePart(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "PART :Not enough parameters")
		return
	}

	reason := ""
	if len(params) > 1 {
		reason = params[1]
	}

	for _, channelName := range strings.Split(params[0], ",") {
		ch := c.server.getChannel(channelName)
		if ch == nil {
			c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
			continue
		}

		if !ch.HasClient(c) {
			c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
			continue
		}

		// The leaver sees its own PART, so broadcast before removal.
		ch.Broadcast(fmt.Sprintf(":%s PART %s :%s", c.prefix(), channelName, reason), nil)

		ch.RemoveClient(c)
		delete(c.channels, channelName)
		c.server.removeChannelIfEmpty(ch)
		c.server.record(channelName, c.nickname, "part", reason)
	}
}

// handleTopic handles a TOPIC command.
func (c *Client) handleTopic(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "TOPIC :Not enough parameters")
		return
	}

	channelName := params[0]
	ch := c.server.getChannel(channelName)
	if ch == nil {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
		return
	}

	if !ch.HasClient(c) {
		c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
		return
	}

	// Query form.
	if len(params) == 1 {
		if topic := ch.Topic(); topic != "" {
			c.sendNumeric(RPL_TOPIC, fmt.Sprintf("%s :%s", channelName, topic))
		} else {
			c.sendNumeric(RPL_NOTOPIC, fmt.Sprintf("%s :No topic is set", channelName))
		}
		return
	}

	if ch.IsTopicRestricted() && !ch.IsOperator(c) && !c.operator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", channelName))
		return
	}

	newTopic := params[1]
	ch.SetTopic(newTopic)
	ch.Broadcast(fmt.Sprintf(":%s TOPIC %s :%s", c.prefix(), channelName, newTopic), nil)
	c.server.record(channelName, c.nickname, "topic", newTopic)
}

// handleMode handles a MODE command for the i/t/k/l/o channel modes and
// the trivial user-mode query.
func (c *Client) handleMode(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "MODE :Not enough parameters")
		return
	}

	target := params[0]
	if target == "" || (target[0] != '#' && target[0] != '&') {
		c.handleUserMode(params)
		return
	}

	ch := c.server.getChannel(target)
	if ch == nil {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", target))
		return
	}

	// Query form.
	if len(params) == 1 {
		c.sendNumeric(RPL_CHANNELMODEIS, fmt.Sprintf("%s %s", target, ch.ModeString()))
		return
	}

	if !ch.HasClient(c) {
		c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", target))
		return
	}

	if !ch.IsOperator(c) && !c.operator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", target))
		return
	}

	c.applyChannelModes(ch, params[1], params[2:])
}

// applyChannelModes walks a +/- mode string, consuming arguments for
// k, l (when adding) and o, and broadcasts the applied changes once.
func (c *Client) applyChannelModes(ch *Channel, modeStr string, modeArgs []string) {
	adding := true
	argIndex := 0

	var appliedModes strings.Builder
	var appliedArgs []string
	lastSign := byte(0)

	apply := func(mode byte, arg string) {
		sign := byte('-')
		if adding {
			sign = '+'
		}
		if sign != lastSign {
			appliedModes.WriteByte(sign)
			lastSign = sign
		}
		appliedModes.WriteByte(mode)
		if arg != "" {
			appliedArgs = append(appliedArgs, arg)
		}
	}

	nextArg := func() (string, bool) {
		if argIndex >= len(modeArgs) {
			return "", false
		}
		arg := modeArgs[argIndex]
		argIndex++
		return arg, true
	}

	for i := 0; i < len(modeStr); i++ {
		switch mode := modeStr[i]; mode {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'i':
			ch.SetInviteOnly(adding)
			apply(mode, "")
		case 't':
			ch.SetTopicRestricted(adding)
			apply(mode, "")
		case 'k':
			if adding {
				key, ok := nextArg()
				if !ok {
					continue
				}
				ch.SetKey(key)
				apply(mode, key)
			} else {
				ch.SetKey("")
				apply(mode, "")
			}
		case 'l':
			if adding {
				arg, ok := nextArg()
				if !ok {
					continue
				}
				limit, err := strconv.Atoi(arg)
				if err != nil || limit < 0 {
					continue
				}
				ch.SetUserLimit(limit)
				apply(mode, arg)
			} else {
				ch.SetUserLimit(0)
				apply(mode, "")
			}
		case 'o':
			nick, ok := nextArg()
			if !ok {
				continue
			}
			targetClient, exists := c.server.nicks[nick]
			if !exists || !ch.HasClient(targetClient) {
				c.sendNumeric(ERR_USERNOTINCHANNEL,
					fmt.Sprintf("%s %s :They aren't on that channel", nick, ch.Name()))
				continue
			}
			if adding {
				ch.AddOperator(targetClient)
			} else {
				ch.RemoveOperator(targetClient)
			}
			apply(mode, nick)
		}
	}

	if appliedModes.Len() == 0 {
		return
	}

	line := fmt.Sprintf(":%s MODE %s %s", c.prefix(), ch.Name(), appliedModes.String())
	if len(appliedArgs) > 0 {
		line += " " + strings.Join(appliedArgs, " ")
	}
	ch.Broadcast(line, nil)
}

// handleUserMode answers the user-mode query for the session itself.
func (c *Client) handleUserMode(params []string) {
	if params[0] != c.nickname {
		c.sendNumeric(ERR_USERSDONTMATCH, ":Cant change mode for other users")
		return
	}

	modes := "+"
	if c.operator {
		modes += "o"
	}
	c.sendNumeric(RPL_UMODEIS, modes)
}

// handleInvite handles an INVITE command.
func (c *Client) handleInvite(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "INVITE :Not enough parameters")
		return
	}

	targetNick := params[0]
	channelName := params[1]

	ch := c.server.getChannel(channelName)
	if ch == nil {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
		return
	}

	if !ch.HasClient(c) {
		c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
		return
	}

	if ch.IsInviteOnly() && !ch.IsOperator(c) && !c.operator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", channelName))
		return
	}

	targetClient, exists := c.server.nicks[targetNick]
	if !exists {
		c.sendNumeric(ERR_NOSUCHNICK, fmt.Sprintf("%s :No such nick/channel", targetNick))
		return
	}

	if ch.HasClient(targetClient) {
		c.sendNumeric(ERR_USERONCHANNEL, fmt.Sprintf("%s %s :is already on channel", targetNick, channelName))
		return
	}

	ch.Invite(targetClient)

	c.sendNumeric(RPL_INVITING, fmt.Sprintf("%s %s", targetNick, channelName))
	targetClient.send(fmt.Sprintf(":%s INVITE %s :%s", c.prefix(), targetNick, channelName))
}

// handleKick handles a KICK command.
func (c *Client) handleKick(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 2 {
		c.sendNumeric(ERR_NEEDMOREPARAMS, "KICK :Not enough parameters")
		return
	}

	channelName := params[0]
	targetNick := params[1]
	reason := "No reason"
	if len(params) > 2 {
		reason = params[2]
	}

	ch := c.server.getChannel(channelName)
	if ch == nil {
		c.sendNumeric(ERR_NOSUCHCHANNEL, fmt.Sprintf("%s :No such channel", channelName))
		return
	}

	if !ch.HasClient(c) {
		c.sendNumeric(ERR_NOTONCHANNEL, fmt.Sprintf("%s :You're not on that channel", channelName))
		return
	}

	if !ch.IsOperator(c) && !c.operator {
		c.sendNumeric(ERR_CHANOPRIVSNEEDED, fmt.Sprintf("%s :You're not a channel operator", channelName))
		return
	}

	targetClient, exists := c.server.nicks[targetNick]
	if !exists || !ch.HasClient(targetClient) {
		c.sendNumeric(ERR_USERNOTINCHANNEL,
			fmt.Sprintf("%s %s :They aren't on that channel", targetNick, channelName))
		return
	}

	ch.Broadcast(fmt.Sprintf(":%s KICK %s %s :%s", c.prefix(), channelName, targetNick, reason), nil)

	ch.RemoveClient(targetClient)
	delete(targetClient.channels, channelName)
	c.server.removeChannelIfEmpty(ch)
	c.server.record(channelName, targetNick, "kick", reason)
}

// handleNames handles a NAMES command.
func (c *Client) handleNames(params []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	if len(params) < 1 {
		for _, ch := range c.server.channelList() {
			c.sendNames(ch.Name())
		}
		return
	}

	for _, channelName := range strings.Split(params[0], ",") {
		c.sendNames(channelName)
	}
}

// sendNames sends the 353/366 names listing for one channel. Member
// order is join order, operators marked with "@".
func (c *Client) sendNames(channelName string) {
	if ch := c.server.getChannel(channelName); ch != nil {
		c.sendNumeric(RPL_NAMREPLY, fmt.Sprintf("= %s :%s", channelName, ch.NamesList()))
	}
	c.sendNumeric(RPL_ENDOFNAMES, fmt.Sprintf("%s :End of /NAMES list", channelName))
}

// handleList handles a LIST command.
func (c *Client) handleList(_ []string) {
	if !c.registered {
		c.sendNumeric(ERR_NOTREGISTERED, ":You have not registered")
		return
	}

	c.sendNumeric(RPL_LISTSTART, "Channel :Users  Name")
	for _, ch := range c.server.channelList() {
		c.sendNumeric(RPL_LIST, fmt.Sprintf("%s %d :%s", ch.Name(), ch.Len(), ch.Topic()))
	}
	c.sendNumeric(RPL_LISTEND, ":End of LIST")
}
