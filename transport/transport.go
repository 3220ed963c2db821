// Package transport is the downward connect(url, proxy?) -> (writer,
// reader) collaborator. It is deliberately thin: the relay actor depends
// only on the Conn interface, never on gorilla/websocket directly, so
// tests can substitute the in-memory FakeConn of fake.go.
package transport

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	xproxy "golang.org/x/net/proxy"
)

// Conn is a duplex text-frame connection: one WriteText per outbound
// frame, one ReadMessage per inbound frame.
type Conn interface {
	WriteText(data []byte) error
	ReadMessage() (data []byte, err error)
	Close() error
}

// wsConn adapts a gorilla/websocket.Conn to Conn.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) WriteText(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// Dial opens a websocket duplex to rawURL, optionally through a SOCKS5
// proxy described by proxyURL (golang.org/x/net/proxy, mirroring the
// asmogo-nws/socks5 proxy-dialing style). A 7-second deadline is applied
// when ctx carries no deadline of its own, matching the original's
// "force it to 7 seconds" rule.
func Dial(ctx context.Context, rawURL string, proxyURL *url.URL) (Conn, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 7*time.Second)
		defer cancel()
	}

	dialer := *websocket.DefaultDialer
	if proxyURL != nil {
		proxyDialer, err := xproxy.FromURL(proxyURL, xproxy.Direct)
		if err != nil {
			return nil, err
		}
		dialer.NetDialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return proxyDialer.Dial(network, addr)
		}
	}

	ws, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}
