package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	nickname := flag.String("nick", "tester", "nickname to register")
	text := flag.String("text", "hello from smoke test", "line to relay")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(line string) error {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return fmt.Errorf("send %q: %w", line, err)
		}
		return nil
	}
	read := func() (string, error) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		return string(data), nil
	}

	if err := send(*nickname); err != nil {
		return err
	}
	reply, err := read()
	if err != nil {
		return err
	}
	fmt.Printf("handshake: %s\n", reply)
	if reply != proto.Welcome {
		return errors.New("nickname refused")
	}

	if err := send(proto.CommandOnlineList); err != nil {
		return err
	}
	line, err := read()
	if err != nil {
		return err
	}
	fmt.Printf("online: %s\n", line)

	if err := send(*text); err != nil {
		return err
	}
	return send(proto.TerminationToken)
}
