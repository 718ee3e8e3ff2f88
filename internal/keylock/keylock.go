package keylock

import (
	"fmt"
	"sync"
)

// Locker 按实体键加锁，不同键之间互不阻塞
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New 创建键锁
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock 获取键对应的锁，返回释放函数
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len 当前持有或等待中的键数量
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// BidKey 出价锁键
func BidKey(id int64) string {
	return fmt.Sprintf("bid:%d", id)
}

// ClaimKey 认领锁键
func ClaimKey(id int64) string {
	return fmt.Sprintf("claim:%d", id)
}

// IssueKey 问题锁键
func IssueKey(id int64) string {
	return fmt.Sprintf("issue:%d", id)
}
