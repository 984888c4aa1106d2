// Package subtree 实现订阅命名空间树及其可展开的行投影。
//
// 树由发现协作者通过 AddDiscoveredItem/MarkSubscribed 逐项填充，EndPopulation 之后
// 通过 Rows 以行列表形式提供给界面。所有操作都是同步的，树只需要线程亲和，不是线程安全的。
package subtree

import (
	"fmt"
	"strings"

	"github.com/luhaoyun888/go-subscribe-cn"
)

// DefaultDelimiter 是未设置 Options.Delimiter 时使用的层级分隔符。
const DefaultDelimiter = '.'

// Options 包含树的选项。
//
// 零值可以直接使用：分隔符为 '.'，LeafName 返回未解码的原始名称。
type Options struct {
	// Delimiter 是分隔路径段的单个字符。如果为 0，则使用 DefaultDelimiter。
	Delimiter rune
	// ServerURI 是服务器自身的标识，作为根节点的路径。
	ServerURI string
	// ServerType 决定名称列上的服务器类型标签。
	ServerType subscribe.ServerType
	// FullNameMode 为 true 时，LeafName 将整个转义路径作为一个单元解码（新闻组风格）；
	// 否则只解码最后一个路径段（邮件存储风格）。
	FullNameMode bool
	// Decoder 是名称解码协作者。如果为 nil，LeafName 返回原始名称。
	Decoder subscribe.NameDecoder
	// View 接收行列表的变更通知，可以为 nil。
	View subscribe.View
	// Listener 在 EndPopulation 时收到通知，可以为 nil。
	Listener subscribe.Listener
}

// Tree 是订阅命名空间树。
type Tree struct {
	options Options
	delim   string

	nodes   []node // 节点池，nodes[0] 是零句柄的占位
	root    Handle // 懒创建的根节点
	stopped bool

	rows Rows
}

// New 创建一棵新的空树。
func New(options *Options) *Tree {
	if options == nil {
		options = new(Options)
	}
	t := &Tree{options: *options}
	if t.options.Delimiter == 0 {
		t.options.Delimiter = DefaultDelimiter
	}
	t.delim = string(t.options.Delimiter)
	t.nodes = make([]node, 1, 64)
	t.rows = Rows{tree: t, view: options.View}
	return t
}

// Delimiter 返回树的层级分隔符。
func (t *Tree) Delimiter() rune {
	return t.options.Delimiter
}

// Rows 返回树的行投影。
func (t *Tree) Rows() *Rows {
	return &t.rows
}

// Len 返回树中节点的数量，不包括根节点。
func (t *Tree) Len() int {
	n := len(t.nodes) - 1
	if t.root != 0 {
		n--
	}
	return n
}

// Path 返回节点的完整路径。h 必须是有效句柄。
func (t *Tree) Path(h Handle) string {
	return t.node(h).path
}

// Name 返回节点的原始段名称。h 必须是有效句柄。
func (t *Tree) Name(h Handle) string {
	return t.node(h).name
}

func (t *Tree) node(h Handle) *node {
	if h == 0 || int(h) >= len(t.nodes) {
		panic(fmt.Errorf("subtree: 无效的节点句柄 %v", h))
	}
	return &t.nodes[h]
}

// splitPath 将路径按分隔符切分为段。
//
// 以分隔符开头的路径会把该分隔符保留在第一段中。空路径、仅由分隔符构成的路径、
// 连续分隔符以及尾部分隔符都是无效的。
func (t *Tree) splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, subscribe.ErrInvalidArgument
	}
	body := path
	leading := strings.HasPrefix(path, t.delim)
	if leading {
		body = path[len(t.delim):]
	}
	segs := strings.Split(body, t.delim)
	for _, seg := range segs {
		if seg == "" {
			return nil, subscribe.ErrInvalidArgument
		}
	}
	if leading {
		segs[0] = t.delim + segs[0]
	}
	return segs, nil
}

// ensureRoot 返回根节点，必要时创建它。
func (t *Tree) ensureRoot() Handle {
	if t.root == 0 {
		t.root = t.newNode(0, "", t.options.ServerURI)
	}
	return t.root
}

func (t *Tree) newNode(parent Handle, name, path string) Handle {
	t.nodes = append(t.nodes, node{
		name:   name,
		path:   path,
		parent: parent,
		open:   true,
	})
	return Handle(len(t.nodes) - 1)
}

// FindOrCreate 返回 path 对应的节点，必要时创建该节点及其所有祖先。
func (t *Tree) FindOrCreate(path string) (Handle, error) {
	if t.stopped {
		return 0, &subscribe.PathError{Op: "find", Path: path, Err: subscribe.ErrSessionClosed}
	}
	segs, err := t.splitPath(path)
	if err != nil {
		return 0, &subscribe.PathError{Op: "find", Path: path, Err: err}
	}

	h := t.ensureRoot()
	var prefix string
	for i, seg := range segs {
		if i == 0 {
			prefix = seg
		} else {
			prefix += t.delim + seg
		}
		h = t.insertChild(h, seg, prefix)
	}
	return h, nil
}

// insertChild 在 parent 下查找或插入名为 name 的子节点，保持同级节点降序。
func (t *Tree) insertChild(parent Handle, name, path string) Handle {
	p := &t.nodes[parent]

	// 没有子节点：作为唯一子节点
	if p.firstChild == 0 {
		h := t.newNode(parent, name, path)
		p = &t.nodes[parent]
		p.firstChild, p.lastChild, p.cachedChild = h, h, h
		return h
	}

	// 缓存命中
	if c := p.cachedChild; c != 0 && t.nodes[c].name == name {
		return c
	}

	// 降序输入的快速路径：新名称是最小的，直接追加到末尾
	if last := t.nodes[p.lastChild].name; name < last {
		h := t.newNode(parent, name, path)
		p = &t.nodes[parent]
		t.nodes[h].prevSibling = p.lastChild
		t.nodes[p.lastChild].nextSibling = h
		p.lastChild, p.cachedChild = h, h
		return h
	} else if name == last {
		p.cachedChild = p.lastChild
		return p.lastChild
	}

	// 扫描兄弟链，找到第一个名称小于 name 的兄弟。lastChild 小于 name，所以扫描一定会停下。
	cur := p.firstChild
	for {
		curName := t.nodes[cur].name
		if curName == name {
			p.cachedChild = cur
			return cur
		}
		if curName < name {
			break
		}
		cur = t.nodes[cur].nextSibling
	}

	h := t.newNode(parent, name, path)
	p = &t.nodes[parent]
	prev := t.nodes[cur].prevSibling
	t.nodes[h].prevSibling = prev
	t.nodes[h].nextSibling = cur
	if prev != 0 {
		t.nodes[prev].nextSibling = h
	} else {
		p.firstChild = h
	}
	t.nodes[cur].prevSibling = h
	p.cachedChild = h
	return h
}

// lookupChild 在 parent 下查找名为 name 的子节点，不创建。
func (t *Tree) lookupChild(parent Handle, name string) Handle {
	p := &t.nodes[parent]
	if c := p.cachedChild; c != 0 && t.nodes[c].name == name {
		return c
	}
	for cur := p.firstChild; cur != 0; cur = t.nodes[cur].nextSibling {
		switch curName := t.nodes[cur].name; {
		case curName == name:
			return cur
		case curName < name:
			return 0
		}
	}
	return 0
}

// Lookup 返回 path 对应的已有节点。空路径表示根节点。
func (t *Tree) Lookup(path string) (Handle, error) {
	return t.resolve("lookup", path)
}

func (t *Tree) resolve(op, path string) (Handle, error) {
	if path == "" {
		if t.root == 0 {
			return 0, &subscribe.PathError{Op: op, Path: path, Err: subscribe.ErrNotFound}
		}
		return t.root, nil
	}
	segs, err := t.splitPath(path)
	if err != nil {
		return 0, &subscribe.PathError{Op: op, Path: path, Err: err}
	}
	h := t.root
	for _, seg := range segs {
		if h == 0 {
			break
		}
		h = t.lookupChild(h, seg)
	}
	if h == 0 {
		return 0, &subscribe.PathError{Op: op, Path: path, Err: subscribe.ErrNotFound}
	}
	return h, nil
}

// AddDiscoveredItem 记录发现协作者报告的一个条目。
//
// 节点不存在时会被创建。isSubscribable 总是被更新；isSubscribed 只有在节点是新发现的
// 或 changeIfExists 为 true 时才会被更新。填充会话结束后调用会返回 ErrSessionClosed。
func (t *Tree) AddDiscoveredItem(path string, subscribed, subscribable, changeIfExists bool) error {
	if t.stopped {
		return &subscribe.PathError{Op: "add", Path: path, Err: subscribe.ErrSessionClosed}
	}
	h, err := t.FindOrCreate(path)
	if err != nil {
		return err
	}
	n := &t.nodes[h]
	if !n.listed || changeIfExists {
		n.subscribed = subscribed
		n.discovered = subscribed
	}
	n.subscribable = subscribable
	n.listed = true
	return nil
}

// MarkSubscribed 将节点标记为已订阅且可订阅，必要时创建该节点。
//
// 用于调用者已知条目处于订阅状态的场合，例如从上一次会话恢复。
func (t *Tree) MarkSubscribed(path string) error {
	if t.stopped {
		return &subscribe.PathError{Op: "subscribe", Path: path, Err: subscribe.ErrSessionClosed}
	}
	h, err := t.FindOrCreate(path)
	if err != nil {
		return err
	}
	n := &t.nodes[h]
	n.subscribed, n.subscribable = true, true
	n.discovered = true
	n.listed = true
	return nil
}

// SetState 设置节点期望的订阅状态，返回状态是否发生了变化。
//
// 不可订阅的节点会被静默忽略（返回 false 和 nil）。需要区分“已经是期望状态”和
// “不可订阅”的调用者应先调用 IsSubscribable。
func (t *Tree) SetState(path string, subscribed bool) (changed bool, err error) {
	h, err := t.resolve("set state", path)
	if err != nil {
		return false, err
	}
	n := &t.nodes[h]
	if !n.subscribable || n.subscribed == subscribed {
		return false, nil
	}
	n.subscribed = subscribed
	if row := t.rows.indexOf(h); row >= 0 {
		t.rows.invalidate(row)
	}
	return true, nil
}

// HasChildren 报告节点是否有子节点。
func (t *Tree) HasChildren(path string) (bool, error) {
	h, err := t.resolve("has children", path)
	if err != nil {
		return false, err
	}
	return t.nodes[h].firstChild != 0, nil
}

// IsSubscribed 报告节点是否已订阅。
func (t *Tree) IsSubscribed(path string) (bool, error) {
	h, err := t.resolve("is subscribed", path)
	if err != nil {
		return false, err
	}
	return t.nodes[h].subscribed, nil
}

// IsSubscribable 报告节点是否可订阅。
func (t *Tree) IsSubscribable(path string) (bool, error) {
	h, err := t.resolve("is subscribable", path)
	if err != nil {
		return false, err
	}
	return t.nodes[h].subscribable, nil
}

// FirstChildPath 返回节点第一个子节点（按存储顺序，即名称最大者）的路径。
// 没有子节点时返回 ErrNotFound。
func (t *Tree) FirstChildPath(path string) (string, error) {
	h, err := t.resolve("first child", path)
	if err != nil {
		return "", err
	}
	c := t.nodes[h].firstChild
	if c == 0 {
		return "", &subscribe.PathError{Op: "first child", Path: path, Err: subscribe.ErrNotFound}
	}
	return t.nodes[c].path, nil
}

// ChildPaths 按名称升序返回节点所有子节点的路径。
func (t *Tree) ChildPaths(path string) ([]string, error) {
	h, err := t.resolve("child paths", path)
	if err != nil {
		return nil, err
	}
	var l []string
	for c := t.nodes[h].lastChild; c != 0; c = t.nodes[c].prevSibling {
		l = append(l, t.nodes[c].path)
	}
	return l, nil
}

// LeafName 返回节点可显示的名称。
//
// 全名模式下解码整个转义路径，否则只解码最后一个路径段。根节点返回服务器标识。
func (t *Tree) LeafName(path string) (string, error) {
	h, err := t.resolve("leaf name", path)
	if err != nil {
		return "", err
	}
	n := &t.nodes[h]
	if h == t.root {
		return n.path, nil
	}

	raw, mode := n.name, subscribe.DecodeSegment
	if t.options.FullNameMode {
		raw, mode = n.path, subscribe.DecodeEscapedPath
	}
	if t.options.Decoder == nil {
		return raw, nil
	}
	name, err := t.options.Decoder.DecodeLeaf(raw, mode)
	if err != nil {
		return "", &subscribe.PathError{Op: "leaf name", Path: path, Err: err}
	}
	return name, nil
}

// walk 按显示顺序（升序、深度优先）遍历 h 的所有后代。
func (t *Tree) walk(h Handle, f func(h Handle)) {
	for c := t.nodes[h].lastChild; c != 0; c = t.nodes[c].prevSibling {
		f(c)
		t.walk(c, f)
	}
}

// Changes 按显示顺序返回订阅状态与发现时不同的节点。
func (t *Tree) Changes() []subscribe.Change {
	if t.root == 0 {
		return nil
	}
	var l []subscribe.Change
	t.walk(t.root, func(h Handle) {
		n := &t.nodes[h]
		if n.subscribed != n.discovered {
			l = append(l, subscribe.Change{Path: n.path, Subscribed: n.subscribed})
		}
	})
	return l
}

// Search 按显示顺序返回路径与 pattern 匹配的所有节点。
//
// pattern 支持 LIST 风格的通配符：'*' 匹配任意字符，'%' 匹配除分隔符以外的任意字符。
// 不含通配符的 pattern 按不区分大小写的子串匹配。
func (t *Tree) Search(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, &subscribe.PathError{Op: "search", Path: pattern, Err: subscribe.ErrInvalidArgument}
	}
	if t.root == 0 {
		return nil, nil
	}

	match := func(path string) bool {
		return MatchPath(path, t.options.Delimiter, pattern)
	}
	if !strings.ContainsAny(pattern, "*%") {
		lower := strings.ToLower(pattern)
		match = func(path string) bool {
			return strings.Contains(strings.ToLower(path), lower)
		}
	}

	var l []string
	t.walk(t.root, func(h Handle) {
		if p := t.nodes[h].path; match(p) {
			l = append(l, p)
		}
	})
	return l, nil
}
