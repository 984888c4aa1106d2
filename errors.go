package subscribe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 表示参数无效，例如空路径或包含连续分隔符的路径。
	ErrInvalidArgument = errors.New("subscribe: 无效参数")
	// ErrNotFound 表示路径没有对应的节点。
	ErrNotFound = errors.New("subscribe: 节点不存在")
	// ErrSessionClosed 表示填充会话结束后又尝试修改树。
	ErrSessionClosed = errors.New("subscribe: 填充会话已结束")
)

// PathError 记录失败的操作以及它所针对的路径。
type PathError struct {
	Op   string // 操作名称
	Path string // 路径
	Err  error  // 底层错误
}

var _ error = (*PathError)(nil)

// Error 实现了 error 接口。
func (err *PathError) Error() string {
	return fmt.Sprintf("%v %q: %v", err.Op, err.Path, err.Err)
}

// Unwrap 返回底层错误。
func (err *PathError) Unwrap() error {
	return err.Err
}
