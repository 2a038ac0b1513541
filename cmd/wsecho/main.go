// Command wsecho is a websocket echo server built directly on TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sockwire/ws"
)

var (
	configPath = flag.String("config", "", "path to yaml config")
	addr       = flag.String("listen", "", "addr to listen (overrides config)")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	cfg, err := load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Fatalf("listen %q error: %v", cfg.Listen, err)
	}
	log.Printf("listening %s (%q)", ln.Addr(), cfg.Listen)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("signal %q received; shutting down", s)
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("accept error: %v", err)
			continue
		}
		go handle(conn, cfg)
	}
}

func handle(conn net.Conn, cfg config) {
	remote := conn.RemoteAddr()
	c := ws.Server(conn, cfg.wsConfig())

	ctx := context.Background()
	if t := cfg.HandshakeTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	hs, err := c.Handshake(ctx)
	if err != nil {
		log.Printf("%s: upgrade error: %v", remote, err)
		return
	}
	log.Printf("%s: established websocket connection: %+v", remote, hs)

	if err := echo(c); err != nil {
		log.Printf("%s: %v", remote, err)
		return
	}
	log.Printf("%s: closed", remote)
}

// echo writes every received message back until the connection is closed.
// Normal closure by peer is not an error.
func echo(c *ws.Conn) error {
	for {
		m, err := c.ReadMessage()
		var ce *ws.CloseError
		if errors.As(err, &ce) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.WriteMessage(m.OpCode, m.Payload); err != nil {
			return err
		}
	}
}
