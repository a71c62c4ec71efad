package core

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// CommandKind identifies an in-band command.
type CommandKind int

const (
	// CommandNone marks a line that is not a command and must be relayed.
	CommandNone CommandKind = iota
	// CommandIsOnline answers whether a nickname is connected.
	CommandIsOnline
	// CommandHelp sends the help document.
	CommandHelp
	// CommandOnlineList lists every connected nickname.
	CommandOnlineList
	// CommandUnknown is any other slash token; it gets the usage hint.
	CommandUnknown
)

// Command is a parsed in-band command.
type Command struct {
	Kind CommandKind
	Arg  string
}

// ParseCommand reads the first whitespace-delimited token of line.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 || !proto.IsCommand(fields[0]) {
		return Command{Kind: CommandNone}
	}

	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case proto.CommandIsOnline:
		return Command{Kind: CommandIsOnline, Arg: arg}
	case proto.CommandHelp:
		return Command{Kind: CommandHelp}
	case proto.CommandOnlineList:
		return Command{Kind: CommandOnlineList}
	default:
		return Command{Kind: CommandUnknown}
	}
}

// Dispatcher executes in-band commands. It never reads from a connection;
// replies are unicast to the requester through the router.
type Dispatcher struct {
	registry *Registry
	router   *Router
	help     string
	pageSize int
	log      *zerolog.Logger
}

// NewDispatcher builds a dispatcher. pageSize bounds the /enLigne batch size.
func NewDispatcher(registry *Registry, router *Router, help string, pageSize int, logger *zerolog.Logger) *Dispatcher {
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		registry: registry,
		router:   router,
		help:     help,
		pageSize: pageSize,
		log:      logger,
	}
}

// Dispatch runs line as a command for sess. It reports false when the line
// is not a command and should be relayed instead.
func (d *Dispatcher) Dispatch(sess *Session, line string) bool {
	cmd := ParseCommand(line)
	requester := sess.Nickname()

	switch cmd.Kind {
	case CommandNone:
		return false
	case CommandIsOnline:
		d.isOnline(requester, cmd.Arg)
	case CommandHelp:
		d.reply(requester, d.help)
	case CommandOnlineList:
		d.onlineList(requester)
	default:
		d.reply(requester, proto.UsageHint)
	}
	return true
}

func (d *Dispatcher) isOnline(requester, nickname string) {
	if nickname == "" {
		d.reply(requester, proto.UsageHint)
		return
	}
	if _, err := d.registry.LookupByNickname(nickname); err == nil {
		d.reply(requester, proto.Online(nickname))
		return
	}
	d.reply(requester, proto.Offline(nickname))
}

// onlineList sends the active nicknames in pages of at most pageSize lines.
func (d *Dispatcher) onlineList(requester string) {
	entries := d.registry.ListActive()
	for start := 0; start < len(entries); start += d.pageSize {
		end := min(start+d.pageSize, len(entries))

		var page strings.Builder
		for i, e := range entries[start:end] {
			if i > 0 {
				page.WriteByte('\n')
			}
			page.WriteString(proto.Online(e.Nickname))
		}
		if !d.reply(requester, page.String()) {
			return
		}
	}
}

func (d *Dispatcher) reply(requester, text string) bool {
	if err := d.router.SendTo(requester, text); err != nil {
		d.log.Warn().Err(err).Str("nickname", requester).Msg("command reply failed")
		return false
	}
	return true
}
