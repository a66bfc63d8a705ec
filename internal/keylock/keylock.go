// Package keylock はキー単位の排他ロックを提供する。
// 誰も保持・待機していないキーのエントリは解放時に取り除かれる。
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// entry はキーごとのロックと、それを保持または待機している数。
type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker はキーごとのミューテックスを管理する。ゼロ値は使えないため New で生成すること。
type Locker struct {
	entries *xsync.Map[string, *entry]
}

// New は空の Locker を生成する。
func New() *Locker {
	return &Locker{entries: xsync.NewMap[string, *entry]()}
}

// Lock は key のロックを取得し、解放用の関数を返す。
func (l *Locker) Lock(key string) (unlock func()) {
	e, _ := l.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})
	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.entries.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
				if !loaded {
					return nil, xsync.CancelOp
				}
				old.refs--
				if old.refs == 0 {
					return nil, xsync.DeleteOp
				}
				return old, xsync.UpdateOp
			})
		})
	}
}

// Len は現在エントリを持つキーの数を返す。
func (l *Locker) Len() int {
	return l.entries.Size()
}
