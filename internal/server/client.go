package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is the middleware between a websocket connection and the relay. The
// read pump feeds the dispatcher in arrival order; the write pump owns all
// writes to the socket.
type Client struct {
	session    *Session
	registry   *Registry
	dispatcher *Dispatcher
	conn       *websocket.Conn
	readLimit  int64

	send chan protocol.Event
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, registry *Registry, dispatcher *Dispatcher, readLimit int64, sendBuffer int) *Client {
	return &Client{
		registry:   registry,
		dispatcher: dispatcher,
		conn:       conn,
		readLimit:  readLimit,
		send:       make(chan protocol.Event, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Send queues an event for the write pump without blocking. A full buffer or
// a closed connection drops the event and reports false.
func (c *Client) Send(evt protocol.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c.session.ID)
		c.close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("conn", c.session.ID).Warn("read error")
			}
			break
		}

		var evt protocol.Event
		if err := json.Unmarshal(messageBytes, &evt); err != nil {
			log.WithError(err).WithField("conn", c.session.ID).Debug("unparseable event, skipping")
			continue
		}
		if evt.Type == "" {
			continue
		}

		c.dispatcher.Dispatch(c.session, evt)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				log.WithError(err).WithField("conn", c.session.ID).Debug("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
