package subtree

import (
	"fmt"
	"strconv"

	"github.com/luhaoyun888/go-subscribe-cn"
)

// Rows 是树的行投影：当前可见节点的扁平有序列表。
//
// 一个节点出现在行列表中，当且仅当它的所有祖先都处于展开状态，并且至少完成过一次填充会话。
// 行按每个展开子树内的名称升序、深度优先排列。
type Rows struct {
	tree *Tree
	rows []Handle
	view subscribe.View
}

// SetView 设置接收变更通知的视图，可以为 nil。
func (r *Rows) SetView(view subscribe.View) {
	r.view = view
}

// RowCount 返回当前可见行的数量。
func (r *Rows) RowCount() int {
	return len(r.rows)
}

// NodeAt 返回第 row 行的节点。
func (r *Rows) NodeAt(row int) Handle {
	return r.at(row)
}

// Paths 按显示顺序返回所有可见行的路径。
func (r *Rows) Paths() []string {
	l := make([]string, len(r.rows))
	for i, h := range r.rows {
		l[i] = r.tree.nodes[h].path
	}
	return l
}

// Find 返回 path 所在的行，节点不存在或不可见时返回 -1。
func (r *Rows) Find(path string) int {
	h, err := r.tree.resolve("find row", path)
	if err != nil {
		return -1
	}
	return r.indexOf(h)
}

// at 返回第 row 行的节点。越界时 panic，与切片下标的语义一致。
func (r *Rows) at(row int) Handle {
	if row < 0 || row >= len(r.rows) {
		panic(fmt.Errorf("subtree: 行 %v 超出范围 (共 %v 行)", row, len(r.rows)))
	}
	return r.rows[row]
}

func (r *Rows) indexOf(h Handle) int {
	for i, x := range r.rows {
		if x == h {
			return i
		}
	}
	return -1
}

func (r *Rows) invalidate(row int) {
	if r.view != nil {
		r.view.RowInvalidated(row)
	}
}

// reset 清空行列表。
func (r *Rows) reset() {
	n := len(r.rows)
	r.rows = r.rows[:0]
	if n > 0 && r.view != nil {
		r.view.RowsRemoved(0, n)
	}
}

// materializeTopLevel 在填充结束时生成初始行列表。
//
// 顶层节点先以折叠状态按升序加入，然后其中有子节点的立即展开。更深层级保留各自的展开状态。
func (r *Rows) materializeTopLevel() {
	t := r.tree
	r.reset()

	if t.root == 0 {
		return
	}
	for c := t.nodes[t.root].lastChild; c != 0; c = t.nodes[c].prevSibling {
		t.nodes[c].open = false
		r.rows = append(r.rows, c)
	}
	// 从后往前展开，使插入不会移动尚未处理的顶层行
	for i := len(r.rows) - 1; i >= 0; i-- {
		if t.nodes[r.rows[i]].firstChild != 0 {
			r.expand(i)
		}
	}

	if len(r.rows) > 0 && r.view != nil {
		r.view.RowsInserted(0, len(r.rows))
	}
}

// Toggle 切换第 row 行的展开状态，返回行数的变化量（折叠时为负数）。
//
// 视图只会收到一次 RowsInserted 或 RowsRemoved，以及该行的 RowInvalidated。
func (r *Rows) Toggle(row int) (delta int, err error) {
	if row < 0 || row >= len(r.rows) {
		return 0, fmt.Errorf("subtree: 切换第 %v 行 (共 %v 行): %w", row, len(r.rows), subscribe.ErrInvalidArgument)
	}

	if r.tree.nodes[r.rows[row]].open {
		n := r.collapse(row)
		if n > 0 && r.view != nil {
			r.view.RowsRemoved(row+1, n)
		}
		delta = -n
	} else {
		n := r.expand(row)
		if n > 0 && r.view != nil {
			r.view.RowsInserted(row+1, n)
		}
		delta = n
	}
	r.invalidate(row)
	return delta, nil
}

// expand 展开第 row 行并在其后插入可见的后代，返回插入的行数。
func (r *Rows) expand(row int) int {
	h := r.rows[row]
	r.tree.nodes[h].open = true

	l := r.appendVisibleChildren(nil, h)
	if len(l) == 0 {
		return 0
	}
	rows := make([]Handle, 0, len(r.rows)+len(l))
	rows = append(rows, r.rows[:row+1]...)
	rows = append(rows, l...)
	rows = append(rows, r.rows[row+1:]...)
	r.rows = rows
	return len(l)
}

// appendVisibleChildren 按升序追加 h 的子节点，以及其中已展开子节点的可见后代。
func (r *Rows) appendVisibleChildren(dst []Handle, h Handle) []Handle {
	nodes := r.tree.nodes
	for c := nodes[h].lastChild; c != 0; c = nodes[c].prevSibling {
		dst = append(dst, c)
		if nodes[c].open && nodes[c].firstChild != 0 {
			dst = r.appendVisibleChildren(dst, c)
		}
	}
	return dst
}

// collapse 折叠第 row 行并一次性移除其后的可见后代，返回移除的行数。
func (r *Rows) collapse(row int) int {
	h := r.rows[row]
	r.tree.nodes[h].open = false

	n := r.descendantRows(row)
	if n == 0 {
		return 0
	}
	r.rows = append(r.rows[:row+1], r.rows[row+1+n:]...)
	return n
}

// descendantRows 计算紧跟在第 row 行之后、属于其子树的行数。
//
// 后续填充会话可能插入尚未投影的兄弟节点，所以不能依赖某个终止节点，
// 而是逐行检查祖先链。
func (r *Rows) descendantRows(row int) int {
	h := r.rows[row]
	i := row + 1
	for i < len(r.rows) && r.isDescendant(r.rows[i], h) {
		i++
	}
	return i - row - 1
}

// isDescendant 报告 h 是否位于 anc 的子树中（不含 anc 本身）。
func (r *Rows) isDescendant(h, anc Handle) bool {
	nodes := r.tree.nodes
	for x := nodes[h].parent; x != 0; x = nodes[x].parent {
		if x == anc {
			return true
		}
	}
	return false
}

// LevelOf 返回第 row 行的深度。顶层为 0。
func (r *Rows) LevelOf(row int) int {
	nodes := r.tree.nodes
	level := 0
	for p := nodes[r.at(row)].parent; p != r.tree.root && p != 0; p = nodes[p].parent {
		level++
	}
	return level
}

// ParentIndexOf 返回第 row 行的父节点所在的行，顶层行返回 -1。
func (r *Rows) ParentIndexOf(row int) int {
	parent := r.tree.nodes[r.at(row)].parent
	if parent == r.tree.root {
		return -1
	}
	for i := row - 1; i >= 0; i-- {
		if r.rows[i] == parent {
			return i
		}
	}
	return -1
}

// HasPrecedingSibling 报告第 row 行的节点在存储顺序中是否有前一个兄弟。
//
// 存储顺序是降序的，所以存储中的前一个兄弟就是显示顺序中排在此行之后的兄弟，
// 树形控件用它来决定是否继续绘制连接线。
func (r *Rows) HasPrecedingSibling(row int) bool {
	return r.tree.nodes[r.at(row)].prevSibling != 0
}

// IsContainer 报告第 row 行的节点是否有子节点。
func (r *Rows) IsContainer(row int) bool {
	return r.tree.nodes[r.at(row)].firstChild != 0
}

// IsContainerOpen 报告第 row 行的节点是否处于展开状态。
func (r *Rows) IsContainerOpen(row int) bool {
	return r.tree.nodes[r.at(row)].open
}

// CellText 返回单元格的显示文本。名称列通过 LeafName 解码，订阅列没有文本。
func (r *Rows) CellText(row int, col subscribe.Column) (string, error) {
	n := &r.tree.nodes[r.at(row)]
	switch col {
	case subscribe.ColumnName:
		return r.tree.LeafName(n.path)
	case subscribe.ColumnSubscribed:
		return "", nil
	default:
		return "", fmt.Errorf("subtree: 未知的列 %v: %w", int(col), subscribe.ErrInvalidArgument)
	}
}

// CellValue 返回单元格的值：名称列为原始路径，订阅列为 "true" 或 "false"。
func (r *Rows) CellValue(row int, col subscribe.Column) (string, error) {
	n := &r.tree.nodes[r.at(row)]
	switch col {
	case subscribe.ColumnName:
		return n.path, nil
	case subscribe.ColumnSubscribed:
		return strconv.FormatBool(n.subscribed), nil
	default:
		return "", fmt.Errorf("subtree: 未知的列 %v: %w", int(col), subscribe.ErrInvalidArgument)
	}
}

// CellProperties 返回单元格的样式提示标签。
func (r *Rows) CellProperties(row int, col subscribe.Column) []subscribe.Property {
	n := &r.tree.nodes[r.at(row)]

	props := make([]subscribe.Property, 0, 3)
	if n.subscribable {
		props = append(props, subscribe.PropSubscribableTrue)
	} else {
		props = append(props, subscribe.PropSubscribableFalse)
	}
	if n.subscribed {
		props = append(props, subscribe.PropSubscribedTrue)
	} else {
		props = append(props, subscribe.PropSubscribedFalse)
	}
	if col == subscribe.ColumnName {
		props = append(props, subscribe.ServerTypeProperty(r.tree.options.ServerType))
	}
	return props
}
