// Package subscribe 实现订阅命名空间树。
//
// 命名空间树维护一个从远程来源（NNTP 服务器上的新闻组、IMAP 服务器上的文件夹）
// 增量发现的层次化条目集合，记录每个条目的已订阅/可订阅状态，并以可展开的行列表形式
// 供树形界面控件使用。
//
// 本包包含各子包共用的类型和协作者接口。请参阅 subtree、namedecode、imapdiscover 和
// nntpdiscover 子包。
package subscribe

import (
	"fmt"
)

// ServerType 描述命名空间的来源服务器类型。
type ServerType int

const (
	ServerTypeIMAP ServerType = iota // IMAP 邮件存储
	ServerTypeNNTP                   // NNTP 新闻服务器
)

// String 实现 fmt.Stringer 接口。
func (t ServerType) String() string {
	switch t {
	case ServerTypeIMAP:
		return "imap"
	case ServerTypeNNTP:
		return "nntp"
	default:
		panic(fmt.Errorf("subscribe: unknown server type %v", int(t))) // 未知服务器类型
	}
}

// Column 是行列表中的列。
type Column int

const (
	ColumnName       Column = iota // 名称列
	ColumnSubscribed               // 订阅状态列
)

// Property 是单元格的样式提示标签。
type Property string

const (
	PropSubscribableTrue  Property = "subscribable-true"  // 可订阅
	PropSubscribableFalse Property = "subscribable-false" // 不可订阅
	PropSubscribedTrue    Property = "subscribed-true"    // 已订阅
	PropSubscribedFalse   Property = "subscribed-false"   // 未订阅
)

// ServerTypeProperty 返回名称列上的服务器类型标签，例如 "serverType-imap"。
func ServerTypeProperty(t ServerType) Property {
	return Property("serverType-" + t.String())
}

// DecodeMode 指定名称解码器处理的输入形式。
type DecodeMode int

const (
	// DecodeSegment 解码单个已经反转义的路径段。
	DecodeSegment DecodeMode = iota
	// DecodeEscapedPath 将整个转义/编码的路径作为一个单元解码。
	DecodeEscapedPath
)

// NameDecoder 将协议编码的原始名称转换为可显示的字符串。
type NameDecoder interface {
	DecodeLeaf(raw string, mode DecodeMode) (string, error)
}

// View 接收行列表的变更通知。
//
// 每次展开或折叠只产生一次 RowsInserted 或 RowsRemoved，而不是逐行通知。
type View interface {
	RowsInserted(start, count int)
	RowsRemoved(start, count int)
	RowInvalidated(row int)
}

// Sink 是发现协作者驱动的填充入口。
//
// 发现协作者按照从网络接收的顺序逐个调用这些方法。
type Sink interface {
	BeginPopulation()
	AddDiscoveredItem(path string, subscribed, subscribable, changeIfExists bool) error
	MarkSubscribed(path string) error
	EndPopulation() error
}

// Listener 在一次填充会话完成时收到通知。
type Listener interface {
	DonePopulating()
}

// ListenerFunc 将普通函数适配为 Listener。
type ListenerFunc func()

// DonePopulating 实现 Listener 接口。
func (f ListenerFunc) DonePopulating() {
	f()
}

// Change 是一条待提交的订阅变更。
type Change struct {
	Path       string // 协议编码的完整路径
	Subscribed bool   // 期望的订阅状态
}
