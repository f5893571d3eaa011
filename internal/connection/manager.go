package connection

import (
	"sync"
	"time"
)

// Conn 注册进管理器的连接需要实现的最小能力
// 线上实现是 *Connection，测试里用假连接替代
type Conn interface {
	ID() int64
	UserID() int64
	Send(data []byte) error
	Close()
	LastActiveTime() time.Time
}

// Manager 管理所有在线连接
// 每个进程一个实例，由 main 构造后注入使用方
type Manager struct {
	mu        sync.RWMutex
	conns     map[int64]Conn          // connID -> Conn
	userConns map[int64]map[int64]Conn // userID -> connID -> Conn
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{
		conns:     make(map[int64]Conn),
		userConns: make(map[int64]map[int64]Conn),
	}
}

// Add 注册连接
func (m *Manager) Add(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns[conn.ID()] = conn

	userID := conn.UserID()
	if _, ok := m.userConns[userID]; !ok {
		m.userConns[userID] = make(map[int64]Conn)
	}
	m.userConns[userID][conn.ID()] = conn
}

// Remove 注销连接，幂等
// 该用户最后一个连接移除后，用户转为离线
func (m *Manager) Remove(connID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return
	}
	delete(m.conns, connID)

	userID := conn.UserID()
	if userConns, ok := m.userConns[userID]; ok {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(m.userConns, userID)
		}
	}
}

// Get 按连接 ID 查找
func (m *Manager) Get(connID int64) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[connID]
}

// SessionsFor 某个用户当前的所有连接，可能为空
func (m *Manager) SessionsFor(userID int64) []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userConns, ok := m.userConns[userID]
	if !ok {
		return nil
	}

	conns := make([]Conn, 0, len(userConns))
	for _, conn := range userConns {
		conns = append(conns, conn)
	}
	return conns
}

// AllSessions 所有在线连接
func (m *Manager) AllSessions() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]Conn, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	return conns
}

// OnlineUserCount 在线用户数（按用户去重，不是连接数）
func (m *Manager) OnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userConns)
}

// ConnCount 连接总数
func (m *Manager) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
