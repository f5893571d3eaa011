package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Louaq/Awesome-poetize-open/internal/connection"
	"github.com/Louaq/Awesome-poetize-open/internal/model"
)

var errStoreDown = errors.New("store down")

// ---------------- 消息持久化 ----------------

type fakeMessages struct {
	mu          sync.Mutex
	failSave    bool
	savedDirect []*model.DirectMessage
	savedGroup  []*model.GroupMessage
}

func (f *fakeMessages) SaveDirect(ctx context.Context, msg *model.DirectMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errStoreDown
	}
	f.savedDirect = append(f.savedDirect, msg)
	return nil
}

func (f *fakeMessages) SaveGroup(ctx context.Context, msg *model.GroupMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errStoreDown
	}
	f.savedGroup = append(f.savedGroup, msg)
	return nil
}

func (f *fakeMessages) directCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.savedDirect)
}

func (f *fakeMessages) groupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.savedGroup)
}

// ---------------- 已读标记 ----------------

type markerKey struct {
	userID   int64
	chatType int
	chatID   int64
}

type fakeMarkers struct {
	mu       sync.Mutex
	markRead []markerKey
	hidden   []markerKey
	unhidden []markerKey
	markers  map[markerKey]*model.ChatLastRead
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{markers: make(map[markerKey]*model.ChatLastRead)}
}

func (f *fakeMarkers) MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, markerKey{userID, chatType, chatID})
	return nil
}

func (f *fakeMarkers) Hide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, markerKey{userID, chatType, chatID})
	return nil
}

func (f *fakeMarkers) Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhidden = append(f.unhidden, markerKey{userID, chatType, chatID})
	return nil
}

func (f *fakeMarkers) Get(ctx context.Context, userID int64, chatType int, chatID int64) (*model.ChatLastRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markers[markerKey{userID, chatType, chatID}], nil
}

func (f *fakeMarkers) unhiddenKeys() []markerKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]markerKey(nil), f.unhidden...)
}

// ---------------- 好友/群关系 ----------------

type fakeFriends struct {
	pairs map[[2]int64]bool
}

func (f *fakeFriends) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	return f.pairs[[2]int64{userID, friendID}], nil
}

type fakeGroups struct {
	members map[int64][]int64
}

func (f *fakeGroups) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	for _, id := range f.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroups) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return f.members[groupID], nil
}

// ---------------- 用户信息 ----------------

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[int64]*model.UserProfile
	calls    int
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, errStoreDown
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---------------- 连接 ----------------

type fakeSession struct {
	mu      sync.Mutex
	id      int64
	userID  int64
	sendErr error
	frames  [][]byte
}

func (f *fakeSession) ID() int64     { return f.id }
func (f *fakeSession) UserID() int64 { return f.userID }
func (f *fakeSession) Close()        {}

func (f *fakeSession) LastActiveTime() time.Time { return time.Now() }

func (f *fakeSession) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSession) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSession) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

type fakeRegistry struct {
	sessions map[int64][]connection.Conn
}

func (f *fakeRegistry) SessionsFor(userID int64) []connection.Conn {
	return f.sessions[userID]
}

func (f *fakeRegistry) AllSessions() []connection.Conn {
	var all []connection.Conn
	for _, conns := range f.sessions {
		all = append(all, conns...)
	}
	return all
}

func (f *fakeRegistry) OnlineUserCount() int {
	count := 0
	for _, conns := range f.sessions {
		if len(conns) > 0 {
			count++
		}
	}
	return count
}

// ---------------- 跨节点转发 ----------------

type fakeRelay struct {
	mu     sync.Mutex
	pushes []int64
}

func (f *fakeRelay) PublishPush(userID int64, frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, userID)
}

func (f *fakeRelay) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}
