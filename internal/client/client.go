// Package client is a minimal interactive line client for the relay.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const (
	// NicknamePrompt asks the user for a nickname.
	NicknamePrompt = "Votre pseudo (maximum 19 caractères):"
	// EndOfSession is printed when the server ends the conversation.
	EndOfSession = "** fin de la communication **"
)

// ErrServerClosed is returned when the server drops the connection before
// the nickname handshake completes.
var ErrServerClosed = errors.New("server closed the connection")

// Options configures a Client.
type Options struct {
	In             io.Reader
	Out            io.Writer
	MaxNicknameLen int
	MaxLineBytes   int
	Logger         *zerolog.Logger
}

// Client relays a terminal to one relay connection.
type Client struct {
	conn    net.Conn
	reader  *proto.LineReader
	in      io.Reader
	out     io.Writer
	maxNick int
	log     *zerolog.Logger
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn, opts), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Client {
	if opts.MaxNicknameLen <= 0 {
		opts.MaxNicknameLen = 19
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 4096
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		conn:    conn,
		reader:  proto.NewLineReader(conn, opts.MaxLineBytes),
		in:      opts.In,
		out:     opts.Out,
		maxNick: opts.MaxNicknameLen,
		log:     logger,
	}
}

// Run performs the nickname handshake and then relays lines both ways until
// the user sends /fin, input ends, ctx is cancelled or the server sends the
// shutdown sentinel. Leaving before the handshake identifies as the reserved
// nickname so the server announces nothing.
func (c *Client) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	defer c.conn.Close()

	input := c.readInput(done)
	server := c.readServer(done)

	for joined := false; !joined; {
		c.println(NicknamePrompt)

		var nickname string
		for nickname == "" {
			select {
			case <-ctx.Done():
				c.leave(false)
				return nil
			case line, ok := <-input:
				if !ok {
					c.leave(false)
					return nil
				}
				nickname = NormalizeNickname(line, c.maxNick)
			}
		}
		if err := c.send(nickname); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			c.leave(false)
			return nil
		case reply, ok := <-server:
			if !ok {
				return ErrServerClosed
			}
			if reply == proto.Sentinel {
				c.println(EndOfSession)
				return nil
			}
			c.println(reply)
			joined = reply == proto.Welcome
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.leave(true)
			return nil
		case line, ok := <-input:
			if !ok {
				c.leave(true)
				return nil
			}
			if line == "" {
				continue
			}
			if err := c.send(line); err != nil {
				return err
			}
			if line == proto.TerminationToken {
				return nil
			}
		case msg, ok := <-server:
			if !ok || msg == proto.Sentinel {
				c.println(EndOfSession)
				return nil
			}
			c.println(msg)
		}
	}
}

// NormalizeNickname trims line, replaces spaces with underscores and clips it
// to max runes.
func NormalizeNickname(line string, max int) string {
	nick := strings.ReplaceAll(strings.TrimSpace(line), " ", "_")
	if max > 0 && utf8.RuneCountInString(nick) > max {
		nick = string([]rune(nick)[:max])
	}
	return nick
}

func (c *Client) leave(joined bool) {
	if !joined {
		if err := c.send(proto.ReservedIdentity); err != nil {
			return
		}
	}
	_ = c.send(proto.TerminationToken)
}

func (c *Client) send(line string) error {
	if _, err := c.conn.Write(proto.Encode(line)); err != nil {
		c.log.Warn().Err(err).Msg("send failed")
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (c *Client) println(line string) {
	_, _ = fmt.Fprintln(c.out, line)
}

func (c *Client) readInput(done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case ch <- strings.TrimRight(sc.Text(), "\r"):
			case <-done:
				return
			}
		}
	}()
	return ch
}

func (c *Client) readServer(done <-chan struct{}) <-chan string {
	ch := make(chan string, 16)
	go func() {
		defer close(ch)
		for {
			line, err := c.reader.ReadLine()
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					c.log.Debug().Err(err).Msg("server read ended")
				}
				return
			}
			select {
			case ch <- line:
			case <-done:
				return
			}
		}
	}()
	return ch
}
