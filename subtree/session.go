package subtree

import (
	"github.com/luhaoyun888/go-subscribe-cn"
)

var _ subscribe.Sink = (*Tree)(nil)

// BeginPopulation 开始一次填充会话。
//
// 它只清除“已停止”标志，不会清空已有的树；需要全新树的调用者应先调用 Reset。
func (t *Tree) BeginPopulation() {
	t.stopped = false
}

// EndPopulation 结束填充会话：之后的修改会返回 ErrSessionClosed，
// 顶层行被重新生成，并通知 Listener。
func (t *Tree) EndPopulation() error {
	if t.stopped {
		return &subscribe.PathError{Op: "end", Path: t.options.ServerURI, Err: subscribe.ErrSessionClosed}
	}
	t.stopped = true
	t.rows.materializeTopLevel()
	if t.options.Listener != nil {
		t.options.Listener.DonePopulating()
	}
	return nil
}

// Populating 报告填充会话是否仍接受修改。
func (t *Tree) Populating() bool {
	return !t.stopped
}

// Reset 一次性丢弃整棵树和行列表，并重新接受修改。之前的句柄全部失效。
func (t *Tree) Reset() {
	t.rows.reset()
	t.nodes = t.nodes[:1]
	t.nodes[0] = node{}
	t.root = 0
	t.stopped = false
}
