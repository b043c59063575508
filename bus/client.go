package bus

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/gorilla/websocket"
)

const (
	defaultReconnectDelay = 5 * time.Second
	dispatchQueueSize     = 64
)

var (
	ErrNotConnected = errors.New("not connected to message bus")
	ErrTimeout      = errors.New("timed out waiting for response")
)

// Handler is invoked on the client's single dispatch goroutine.
type Handler func(msg *Message)

// Bus is the subset of the message bus the daemon relies on.
type Bus interface {
	Emit(msg *Message) error
	On(msgType string, handler Handler) *Subscription
	WaitForResponse(ctx context.Context, msg *Message, replyType string) (*Message, error)
}

type Config struct {
	// Url of the message bus, e.g. ws://127.0.0.1:8181/core
	Url            string
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
	Logger         Logger
}

// check Clients compliance to its interface during compile time
var _ Bus = (*Client)(nil)

// Client is a websocket connection to the message bus that reconnects on
// its own and fans incoming messages out to subscribed handlers.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	log            Logger

	connMtx sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	handlerMtx    sync.Mutex
	handlers      map[string]map[uint32]Handler
	waiters       map[string]map[uint32]chan *Message
	nextHandlerID uint32

	connected chan struct{}
	dispatch  chan *Message
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type Subscription struct {
	Id     uint32
	cancel func()
}

// Cancel removes the handler. The zero Subscription cancels nothing.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

func NewClient(config *Config) *Client {
	client := &Client{
		url:            config.Url,
		dialer:         config.Dialer,
		reconnectDelay: config.ReconnectDelay,
		handlers:       make(map[string]map[uint32]Handler),
		waiters:        make(map[string]map[uint32]chan *Message),
		connected:      make(chan struct{}),
		dispatch:       make(chan *Message, dispatchQueueSize),
		done:           make(chan struct{}),
	}

	if client.dialer == nil {
		client.dialer = websocket.DefaultDialer
	}

	if client.reconnectDelay <= 0 {
		client.reconnectDelay = defaultReconnectDelay
	}

	if config.Logger != nil {
		client.log = config.Logger
	} else {
		client.log = noopLogger{}
	}

	return client
}

// Start connects in the background and keeps reconnecting until Stop.
func (c *Client) Start() error {
	if c.url == "" {
		return errors.New("no message bus url configured")
	}

	c.startOnce.Do(func() {
		c.wg.Add(2)
		go c.run()
		go c.dispatchLoop()
	})

	return nil
}

// WaitConnected blocks until the first connection was established.
func (c *Client) WaitConnected(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		close(c.done)

		c.connMtx.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connMtx.Unlock()
	})

	c.wg.Wait()

	return nil
}

func (c *Client) run() {
	defer c.wg.Done()

	var once sync.Once

	for {
		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warnf("Could not connect to message bus at %v: %v", c.url, err)

			select {
			case <-time.After(c.reconnectDelay):
				continue
			case <-c.done:
				return
			}
		}

		c.connMtx.Lock()
		select {
		case <-c.done:
			c.connMtx.Unlock()
			_ = conn.Close()
			return
		default:
		}
		c.conn = conn
		c.connMtx.Unlock()

		c.log.Infof("Connected to message bus at %v", c.url)
		once.Do(func() { close(c.connected) })

		c.read(conn)

		c.connMtx.Lock()
		c.conn = nil
		c.connMtx.Unlock()

		select {
		case <-c.done:
			return
		default:
			c.log.Warnf("Lost connection to message bus, reconnecting...")
		}
	}
}

func (c *Client) read(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.log.Debugf("Could not read from message bus: %v", err)
			return
		}

		msg, err := Deserialize(payload)
		if err != nil {
			c.log.Debugf("Skipping malformed message: %v", err)
			continue
		}

		// responses are handed out right away so a handler waiting for one
		// can never block the dispatch goroutine it runs on
		c.deliverToWaiters(msg)

		select {
		case c.dispatch <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.dispatch:
			c.handle(msg)
		case <-c.done:
			return
		}
	}
}

func (c *Client) handle(msg *Message) {
	c.handlerMtx.Lock()
	var handlers []Handler
	for _, handler := range c.handlers[msg.Type] {
		handlers = append(handlers, handler)
	}
	c.handlerMtx.Unlock()

	for _, handler := range handlers {
		c.safeCall(handler, msg)
	}
}

func (c *Client) safeCall(handler Handler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Handler for %v panicked: %v", msg.Type, r)
		}
	}()

	handler(msg)
}

func (c *Client) deliverToWaiters(msg *Message) {
	c.handlerMtx.Lock()
	defer c.handlerMtx.Unlock()

	for id, waiter := range c.waiters[msg.Type] {
		waiter <- msg
		delete(c.waiters[msg.Type], id)
	}
}

func (c *Client) On(msgType string, handler Handler) *Subscription {
	c.handlerMtx.Lock()
	defer c.handlerMtx.Unlock()

	id := c.nextHandlerID
	c.nextHandlerID++

	if c.handlers[msgType] == nil {
		c.handlers[msgType] = make(map[uint32]Handler)
	}

	c.handlers[msgType][id] = handler

	return &Subscription{
		Id: id,
		cancel: func() {
			c.handlerMtx.Lock()
			defer c.handlerMtx.Unlock()

			delete(c.handlers[msgType], id)
		},
	}
}

func (c *Client) Emit(msg *Message) error {
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}

	c.connMtx.Lock()
	conn := c.conn
	c.connMtx.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err = conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return errors.Errorf("could not emit %v: %v", msg.Type, err)
	}

	return nil
}

func (c *Client) WaitForResponse(ctx context.Context, msg *Message, replyType string) (*Message, error) {
	waiter := make(chan *Message, 1)

	c.handlerMtx.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	if c.waiters[replyType] == nil {
		c.waiters[replyType] = make(map[uint32]chan *Message)
	}
	c.waiters[replyType][id] = waiter
	c.handlerMtx.Unlock()

	defer func() {
		c.handlerMtx.Lock()
		delete(c.waiters[replyType], id)
		c.handlerMtx.Unlock()
	}()

	err := c.Emit(msg)
	if err != nil {
		return nil, err
	}

	select {
	case reply := <-waiter:
		return reply, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}
