// Package nntpdiscover 通过 NNTP 发现新闻组并填充订阅命名空间树。
//
// 新闻组名称以百分号转义的形式存入树中，显示时由 namedecode.News 解码。
package nntpdiscover

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"strconv"
	"strings"
)

// Logger 是一个记录错误信息的工具。
type Logger interface {
	Printf(format string, args ...interface{})
}

// Options 包含客户端选项。
type Options struct {
	// Logger 是用于打印警告的记录器。如果为 nil，则使用 log.Default。
	Logger Logger
	// 原始的输入和输出数据将被写入此写入器（如果有）。注意，这可能包含 AUTHINFO 凭证。
	DebugWriter io.Writer
}

func (options *Options) logger() Logger {
	if options.Logger == nil {
		return log.Default()
	}
	return options.Logger
}

// wrapReadWriteCloser 在设置了 DebugWriter 时把读写的数据同时写入 DebugWriter。
func (options *Options) wrapReadWriteCloser(rwc io.ReadWriteCloser) io.ReadWriteCloser {
	if options.DebugWriter == nil {
		return rwc
	}
	return struct {
		io.Reader
		io.Writer
		io.Closer
	}{
		Reader: io.TeeReader(rwc, options.DebugWriter),
		Writer: io.MultiWriter(rwc, options.DebugWriter),
		Closer: rwc,
	}
}

// Group 是 LIST ACTIVE 返回的一个新闻组。
type Group struct {
	Name   string
	High   int64
	Low    int64
	Status string // "y"、"n"、"m"、"x" 或 "=别名"
}

// Client 是一个最小的 NNTP 客户端，只实现发现新闻组所需的命令。
type Client struct {
	text    *textproto.Conn
	options Options

	// PostingAllowed 表示服务器问候是否为 200（允许发帖）。
	PostingAllowed bool
}

// Dial 连接到 NNTP 服务器并读取问候。
func Dial(address string, options *Options) (*Client, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("nntpdiscover: 连接 %v: %w", address, err)
	}
	c, err := NewClient(conn, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// DialTLS 通过 TLS 连接到 NNTP 服务器（通常为 563 端口）并读取问候。
func DialTLS(address string, tlsConfig *tls.Config, options *Options) (*Client, error) {
	conn, err := tls.Dial("tcp", address, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("nntpdiscover: 连接 %v: %w", address, err)
	}
	c, err := NewClient(conn, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient 在已建立的连接上创建客户端并读取问候。
func NewClient(conn io.ReadWriteCloser, options *Options) (*Client, error) {
	if options == nil {
		options = new(Options)
	}
	c := &Client{
		text:    textproto.NewConn(options.wrapReadWriteCloser(conn)),
		options: *options,
	}

	code, msg, err := c.text.ReadCodeLine(20) // 200 或 201
	if err != nil {
		return nil, fmt.Errorf("nntpdiscover: 问候: %w", err)
	}
	c.PostingAllowed = code == 200
	c.options.logger().Printf("nntpdiscover: 服务器问候: %v %v", code, msg)
	return c, nil
}

// cmd 发送一条命令并读取状态行。
func (c *Client) cmd(expectCode int, format string, args ...interface{}) (int, string, error) {
	id, err := c.text.Cmd(format, args...)
	if err != nil {
		return 0, "", err
	}
	c.text.StartResponse(id)
	defer c.text.EndResponse(id)
	return c.text.ReadCodeLine(expectCode)
}

// Auth 使用 AUTHINFO USER/PASS 进行身份验证（RFC 4643）。
func (c *Client) Auth(username, password string) error {
	code, _, err := c.cmd(0, "AUTHINFO USER %s", username)
	if err != nil {
		return fmt.Errorf("nntpdiscover: AUTHINFO USER: %w", err)
	}
	switch code {
	case 281:
		return nil // 不需要密码
	case 381:
		// 需要密码
	default:
		return fmt.Errorf("nntpdiscover: AUTHINFO USER: %w", &textproto.Error{Code: code, Msg: "unexpected response"})
	}

	if _, _, err := c.cmd(281, "AUTHINFO PASS %s", password); err != nil {
		return fmt.Errorf("nntpdiscover: AUTHINFO PASS: %w", err)
	}
	return nil
}

// ListActiveFunc 发送 LIST ACTIVE，并对每个返回的新闻组调用 f。
//
// wildmat 为空时列出所有新闻组。f 返回错误时，剩余的行会被读取并丢弃，然后返回该错误。
func (c *Client) ListActiveFunc(wildmat string, f func(Group) error) error {
	var (
		id  uint
		err error
	)
	if wildmat == "" {
		id, err = c.text.Cmd("LIST ACTIVE")
	} else {
		id, err = c.text.Cmd("LIST ACTIVE %s", wildmat)
	}
	if err != nil {
		return fmt.Errorf("nntpdiscover: LIST ACTIVE: %w", err)
	}
	c.text.StartResponse(id)
	defer c.text.EndResponse(id)

	if _, _, err := c.text.ReadCodeLine(215); err != nil {
		return fmt.Errorf("nntpdiscover: LIST ACTIVE: %w", err)
	}

	dr := c.text.DotReader()
	scanner := bufio.NewScanner(dr)
	var ferr error
	for scanner.Scan() {
		if ferr != nil {
			continue // 丢弃剩余的行
		}
		g, err := parseActiveLine(scanner.Text())
		if err != nil {
			c.options.logger().Printf("nntpdiscover: 忽略无效的 LIST ACTIVE 行: %v", err)
			continue
		}
		ferr = f(g)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("nntpdiscover: LIST ACTIVE: %w", err)
	}
	return ferr
}

// ListActive 返回 LIST ACTIVE 列出的所有新闻组。
func (c *Client) ListActive(wildmat string) ([]Group, error) {
	var l []Group
	err := c.ListActiveFunc(wildmat, func(g Group) error {
		l = append(l, g)
		return nil
	})
	return l, err
}

// parseActiveLine 解析 "group high low status" 形式的一行。
func parseActiveLine(line string) (Group, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Group{}, fmt.Errorf("%q: 字段数量为 %v", line, len(fields))
	}
	high, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Group{}, fmt.Errorf("%q: %w", line, err)
	}
	low, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Group{}, fmt.Errorf("%q: %w", line, err)
	}
	return Group{Name: fields[0], High: high, Low: low, Status: fields[3]}, nil
}

// Quit 发送 QUIT 并关闭连接。
func (c *Client) Quit() error {
	_, _, err := c.cmd(205, "QUIT")
	if closeErr := c.text.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close 直接关闭连接。
func (c *Client) Close() error {
	return c.text.Close()
}
