package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Execution is a single fill delivered on the private execution topic.
type Execution struct {
	OrderID     string
	OrderLinkID string
	Symbol      string
	Side        OrderSide
	ExecPrice   float64
	ExecQty     float64
	ExecFee     float64
	IsMaker     bool
	ExecTime    time.Time
}

// PrivateStream maintains the authenticated WebSocket connection and
// delivers executions on a channel. It reconnects with a fixed delay
// until Close is called.
type PrivateStream struct {
	url       string
	apiKey    string
	apiSecret string

	mu        sync.Mutex
	conn      *websocket.Conn
	running   bool
	execs     chan Execution
	ctx       context.Context
	cancel    context.CancelFunc
	reconnect chan struct{}
}

// NewPrivateStream creates a stream for the client's environment.
func (c *Client) NewPrivateStream() *PrivateStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &PrivateStream{
		url:       c.StreamURL(),
		apiKey:    c.apiKey,
		apiSecret: c.apiSecret,
		execs:     make(chan Execution, 256),
		ctx:       ctx,
		cancel:    cancel,
		reconnect: make(chan struct{}, 1),
	}
}

// Executions returns the fill channel. Closed when the stream stops.
func (s *PrivateStream) Executions() <-chan Execution {
	return s.execs
}

// Connect dials, authenticates and subscribes to the execution topic.
func (s *PrivateStream) Connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to private stream: %w", err)
	}

	if err := s.authenticate(conn); err != nil {
		conn.Close()
		return err
	}

	subscribeMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"execution"},
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to execution topic: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.mu.Unlock()

	go s.readMessages(conn)
	go s.pingLoop(conn)
	go s.handleReconnection()

	return nil
}

// authenticate signs "GET/realtime" with an expiry per the V5 private
// stream auth scheme.
func (s *PrivateStream) authenticate(conn *websocket.Conn) error {
	expires := time.Now().Add(10 * time.Second).UnixMilli()
	payload := fmt.Sprintf("GET/realtime%d", expires)

	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	authMsg := map[string]interface{}{
		"op":   "auth",
		"args": []interface{}{s.apiKey, expires, signature},
	}
	if err := conn.WriteJSON(authMsg); err != nil {
		return fmt.Errorf("failed to send auth message: %w", err)
	}
	return nil
}

// Close stops the stream and closes the execution channel.
func (s *PrivateStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	err := s.conn.Close()
	close(s.execs)
	return err
}

func (s *PrivateStream) readMessages(conn *websocket.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if running {
				log.Printf("private stream read error: %v", err)
				s.triggerReconnect()
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *PrivateStream) handleMessage(message []byte) {
	var envelope struct {
		Topic string `json:"topic"`
		Op    string `json:"op"`
		Data  []struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			ExecPrice   string `json:"execPrice"`
			ExecQty     string `json:"execQty"`
			ExecFee     string `json:"execFee"`
			ExecTime    string `json:"execTime"`
			IsMaker     bool   `json:"isMaker"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		log.Printf("private stream: failed to parse message: %v", err)
		return
	}
	if envelope.Topic != "execution" {
		return
	}

	for _, d := range envelope.Data {
		exec := Execution{
			OrderID:     d.OrderID,
			OrderLinkID: d.OrderLinkID,
			Symbol:      d.Symbol,
			Side:        OrderSide(d.Side),
			ExecPrice:   parseFloat64(d.ExecPrice),
			ExecQty:     parseFloat64(d.ExecQty),
			ExecFee:     parseFloat64(d.ExecFee),
			IsMaker:     d.IsMaker,
			ExecTime:    parseTimestamp(d.ExecTime),
		}
		select {
		case s.execs <- exec:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *PrivateStream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingMsg := map[string]interface{}{"op": "ping"}
			if err := conn.WriteJSON(pingMsg); err != nil {
				log.Printf("private stream: failed to send ping: %v", err)
				return
			}
		}
	}
}

func (s *PrivateStream) triggerReconnect() {
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

func (s *PrivateStream) handleReconnection() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reconnect:
			log.Println("private stream: attempting to reconnect...")
			time.Sleep(5 * time.Second)

			dialer := *websocket.DefaultDialer
			dialer.HandshakeTimeout = 10 * time.Second
			conn, _, err := dialer.Dial(s.url, nil)
			if err != nil {
				log.Printf("private stream: reconnection failed: %v", err)
				s.triggerReconnect()
				continue
			}
			if err := s.authenticate(conn); err != nil {
				log.Printf("private stream: re-auth failed: %v", err)
				conn.Close()
				s.triggerReconnect()
				continue
			}
			subscribeMsg := map[string]interface{}{
				"op":   "subscribe",
				"args": []string{"execution"},
			}
			if err := conn.WriteJSON(subscribeMsg); err != nil {
				log.Printf("private stream: resubscribe failed: %v", err)
				conn.Close()
				s.triggerReconnect()
				continue
			}

			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			go s.readMessages(conn)
			go s.pingLoop(conn)
		}
	}
}
