package connection

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn 测试用连接
type fakeConn struct {
	id         int64
	userID     int64
	closed     atomic.Bool
	lastActive time.Time
}

func (f *fakeConn) ID() int64                 { return f.id }
func (f *fakeConn) UserID() int64             { return f.userID }
func (f *fakeConn) Send(data []byte) error    { return nil }
func (f *fakeConn) Close()                    { f.closed.Store(true) }
func (f *fakeConn) LastActiveTime() time.Time { return f.lastActive }

func TestManager_AddRemove(t *testing.T) {
	m := NewManager()

	conn := &fakeConn{id: 1, userID: 100}
	m.Add(conn)

	if m.ConnCount() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.ConnCount())
	}
	if m.OnlineUserCount() != 1 {
		t.Errorf("Expected 1 online user, got %d", m.OnlineUserCount())
	}

	m.Remove(1)

	if m.ConnCount() != 0 {
		t.Errorf("Expected 0 connections, got %d", m.ConnCount())
	}
	if m.OnlineUserCount() != 0 {
		t.Errorf("Expected 0 online users, got %d", m.OnlineUserCount())
	}
	if len(m.SessionsFor(100)) != 0 {
		t.Error("Expected no sessions for user 100")
	}
}

func TestManager_RemoveIdempotent(t *testing.T) {
	m := NewManager()
	m.Add(&fakeConn{id: 1, userID: 100})

	m.Remove(1)
	m.Remove(1) // 第二次应该安全无效果
	m.Remove(99)

	if m.ConnCount() != 0 || m.OnlineUserCount() != 0 {
		t.Error("Manager should be empty after removals")
	}
}

func TestManager_MultiDevice(t *testing.T) {
	m := NewManager()

	// 同一用户两个设备
	m.Add(&fakeConn{id: 1, userID: 100})
	m.Add(&fakeConn{id: 2, userID: 100})
	m.Add(&fakeConn{id: 3, userID: 200})

	if m.ConnCount() != 3 {
		t.Errorf("Expected 3 connections, got %d", m.ConnCount())
	}
	if m.OnlineUserCount() != 2 {
		t.Errorf("Expected 2 online users, got %d", m.OnlineUserCount())
	}
	if len(m.SessionsFor(100)) != 2 {
		t.Errorf("Expected 2 sessions for user 100, got %d", len(m.SessionsFor(100)))
	}

	// 移除一个设备后用户仍在线
	m.Remove(1)
	if m.OnlineUserCount() != 2 {
		t.Errorf("User 100 should still be online, got %d users", m.OnlineUserCount())
	}

	// 移除最后一个设备后用户离线
	m.Remove(2)
	if m.OnlineUserCount() != 1 {
		t.Errorf("Expected 1 online user, got %d", m.OnlineUserCount())
	}
	if len(m.SessionsFor(100)) != 0 {
		t.Error("Expected no sessions for user 100")
	}
}

func TestManager_AllSessions(t *testing.T) {
	m := NewManager()
	m.Add(&fakeConn{id: 1, userID: 100})
	m.Add(&fakeConn{id: 2, userID: 200})

	if got := len(m.AllSessions()); got != 2 {
		t.Errorf("Expected 2 sessions, got %d", got)
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := NewManager()

	const users = 10
	const connsPerUser = 20

	var wg sync.WaitGroup
	for u := int64(0); u < users; u++ {
		for c := int64(0); c < connsPerUser; c++ {
			wg.Add(1)
			go func(userID, connID int64) {
				defer wg.Done()
				m.Add(&fakeConn{id: connID, userID: userID})
				m.SessionsFor(userID)
				m.OnlineUserCount()
			}(u, u*connsPerUser+c+1)
		}
	}
	wg.Wait()

	if m.ConnCount() != users*connsPerUser {
		t.Errorf("Expected %d connections, got %d", users*connsPerUser, m.ConnCount())
	}
	if m.OnlineUserCount() != users {
		t.Errorf("Expected %d online users, got %d", users, m.OnlineUserCount())
	}

	// 并发移除
	for u := int64(0); u < users; u++ {
		for c := int64(0); c < connsPerUser; c++ {
			wg.Add(1)
			go func(connID int64) {
				defer wg.Done()
				m.Remove(connID)
			}(u*connsPerUser + c + 1)
		}
	}
	wg.Wait()

	if m.ConnCount() != 0 || m.OnlineUserCount() != 0 {
		t.Error("Manager should be empty after concurrent removals")
	}
}

func TestIdleChecker_ClosesIdleConnections(t *testing.T) {
	m := NewManager()

	stale := &fakeConn{id: 1, userID: 100, lastActive: time.Now().Add(-time.Hour)}
	fresh := &fakeConn{id: 2, userID: 200, lastActive: time.Now()}
	m.Add(stale)
	m.Add(fresh)

	checker := NewIdleChecker(m, time.Minute, time.Minute, testLogger())
	checker.checkConnections()

	if !stale.closed.Load() {
		t.Error("Stale connection should be closed")
	}
	if fresh.closed.Load() {
		t.Error("Fresh connection should not be closed")
	}
}
