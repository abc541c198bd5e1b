// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/chomp/locks" // 所有分布式锁的根节点

// Conn 是对 zk.Conn 的薄封装。
type Conn struct {
	*zk.Conn
}

// Connect 建立 ZooKeeper 会话。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect to zookeeper")
	}
	return &Conn{Conn: conn}, nil
}

// DistributedLock 基于临时顺序节点实现的互斥锁。
// reconciler 用它做 leader 保护：同一时刻只有一个副本执行扫描。
type DistributedLock struct {
	conn     *Conn
	path     string // 锁的路径，例如 /chomp/locks/reconciler
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个锁实例，并确保锁路径存在。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensurePath(conn *Conn, path string) error {
	// 逐段创建，父节点可能不存在
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	current := ""
	for _, part := range parts {
		current += "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return errors.Wrapf(err, "check node %s", current)
		}
		if exists {
			continue
		}
		if _, err := conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create node %s", current)
		}
	}
	return nil
}

// Lock 尝试获取锁，获取不到则阻塞等待，最多等 wait。
func (l *DistributedLock) Lock(wait time.Duration) error {
	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath

	deadline := time.Now().Add(wait)
	for {
		// 2. 获取锁路径下的所有子节点并排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "get children nodes")
		}
		sort.Strings(children)

		// 3. 自己是最小节点则成功获取锁
		myNodeName := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNodeName == children[0] {
			return nil
		}

		// 4. 否则监听前一个节点
		prevNodeIndex := -1
		for i, child := range children {
			if child == myNodeName {
				prevNodeIndex = i - 1
				break
			}
		}
		if prevNodeIndex < 0 {
			return errors.New("cannot find previous node, something is wrong")
		}
		prevNodePath := l.path + "/" + children[prevNodeIndex]

		_, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			// 前一个节点在检查时刚好被删除，重试循环
			if err == zk.ErrNoNode {
				continue
			}
			return errors.Wrap(err, "watch previous node")
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(time.Until(deadline)):
			// 放弃排队，清掉自己的节点
			_ = l.Unlock()
			return errors.New("timeout waiting for lock")
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}
