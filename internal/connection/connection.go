package connection

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/webtransport-go"
)

var ErrConnectionClosed = errors.New("connection closed")

var connIDCounter int64

// Connection 表示一个已认证的客户端连接
// 一个用户可以同时持有多个连接（多端登录）
type Connection struct {
	id         int64
	userID     int64
	deviceID   string
	session    *webtransport.Session
	logger     *slog.Logger
	writeChan  chan []byte
	closeChan  chan struct{}
	closeOnce  sync.Once
	lastActive atomic.Int64 // UnixNano
	createTime time.Time
}

// NewFromWebTransport 包装一个 WebTransport 会话
func NewFromWebTransport(session *webtransport.Session, userID int64, deviceID string, logger *slog.Logger) *Connection {
	id := atomic.AddInt64(&connIDCounter, 1)
	c := &Connection{
		id:         id,
		userID:     userID,
		deviceID:   deviceID,
		session:    session,
		logger:     logger,
		writeChan:  make(chan []byte, 256),
		closeChan:  make(chan struct{}),
		createTime: time.Now(),
	}
	c.lastActive.Store(time.Now().UnixNano())
	go c.writeLoop()
	return c
}

func (c *Connection) ID() int64 {
	return c.id
}

func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) DeviceID() string {
	return c.deviceID
}

// Send 把一帧排入发送队列，连接已关闭时返回错误
func (c *Connection) Send(data []byte) error {
	select {
	case c.writeChan <- data:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeChan:
			stream, err := c.session.OpenStream()
			if err != nil {
				c.logger.Error("Failed to open stream", "conn_id", c.id, "error", err)
				continue
			}
			if _, err := stream.Write(data); err != nil {
				c.logger.Error("Failed to write to stream", "conn_id", c.id, "error", err)
			}
			stream.Close()
		case <-c.closeChan:
			return
		}
	}
}

// Close 关闭连接，幂等
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.session.CloseWithError(0, "connection closed")
	})
}

// UpdateActive 收到任何入站帧时刷新活跃时间
func (c *Connection) UpdateActive() {
	c.lastActive.Store(time.Now().UnixNano())
}

// LastActiveTime 最近一次活跃时间
func (c *Connection) LastActiveTime() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) CreateTime() time.Time {
	return c.createTime
}
