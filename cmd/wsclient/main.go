// Command wsclient connects to a websocket server, sends text lines read from
// stdin and prints every received message.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/sockwire/ws"
)

var (
	url     = flag.String("url", "ws://127.0.0.1:9001/", "websocket url")
	timeout = flag.Duration("timeout", 5*time.Second, "dial timeout")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	c, hs, err := ws.Dial(context.Background(), *url, ws.Config{
		Dialer: ws.Dialer{Timeout: *timeout},
		OnPong: func(p []byte) { log.Printf("pong %q", p) },
	})
	if err != nil {
		log.Fatalf("dial %q error: %v", *url, err)
	}
	log.Printf("connected: %+v", hs)

	go func() {
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			if err := c.WriteText(s.Text()); err != nil {
				log.Printf("write error: %v", err)
				return
			}
		}
		if err := c.Close(ws.StatusNormalClosure, ""); err != nil {
			log.Printf("close error: %v", err)
		}
	}()

	for {
		m, err := c.ReadMessage()
		if err != nil {
			var ce *ws.CloseError
			if errors.As(err, &ce) || errors.Is(err, ws.ErrConnectionClosed) {
				log.Printf("closed: %v", pkgerrors.Cause(err))
				return
			}
			log.Fatalf("read error: %v", err)
		}
		fmt.Printf("%s: %s\n", m.OpCode, m.Payload)
	}
}
