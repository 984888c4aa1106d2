// Package imapdiscover 通过 IMAP 发现邮箱并填充订阅命名空间树。
//
// 邮箱名称以协议编码（修改版 UTF-7）的形式存入树中，显示时由 namedecode.IMAP 解码。
package imapdiscover

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/namedecode"
)

// Logger 是一个记录错误信息的工具。
type Logger interface {
	Printf(format string, args ...interface{})
}

// Options 包含发现选项。
type Options struct {
	// Ref 是 LIST 命令的引用名称。
	Ref string
	// Pattern 是 LIST 命令的邮箱模式。如果为空，则使用 "*"。
	Pattern string
	// Delimiter 是树使用的分隔符。如果不为 0 且与服务器报告的不同，会记录一条警告。
	Delimiter rune
	// Logger 是用于打印警告的记录器。如果为 nil，则使用 log.Default。
	Logger Logger
}

func (options *Options) logger() Logger {
	if options.Logger == nil {
		return log.Default()
	}
	return options.Logger
}

func (options *Options) pattern() string {
	if options.Pattern == "" {
		return "*"
	}
	return options.Pattern
}

// TLSMode 指定连接服务器的方式。
type TLSMode int

const (
	TLSImplicit TLSMode = iota // 直接使用 TLS（993 端口）
	TLSStartTLS                // 明文连接后使用 STARTTLS
	TLSNone                    // 不使用 TLS
)

// DialOptions 包含连接选项。
type DialOptions struct {
	TLSMode   TLSMode
	TLSConfig *tls.Config
	// 原始的输入和输出数据将被写入此写入器（如果有）。注意，这可能包含身份验证期间使用的凭证。
	DebugWriter io.Writer
}

// Dial 连接到 IMAP 服务器。
func Dial(address string, options *DialOptions) (*imapclient.Client, error) {
	if options == nil {
		options = new(DialOptions)
	}
	clientOptions := &imapclient.Options{
		TLSConfig:   options.TLSConfig,
		DebugWriter: options.DebugWriter,
	}

	var (
		c   *imapclient.Client
		err error
	)
	switch options.TLSMode {
	case TLSImplicit:
		c, err = imapclient.DialTLS(address, clientOptions)
	case TLSStartTLS:
		c, err = imapclient.DialStartTLS(address, clientOptions)
	case TLSNone:
		c, err = imapclient.DialInsecure(address, clientOptions)
	default:
		return nil, fmt.Errorf("imapdiscover: 未知的 TLS 模式 %v", int(options.TLSMode))
	}
	if err != nil {
		return nil, fmt.Errorf("imapdiscover: 连接 %v: %w", address, err)
	}
	return c, nil
}

// Authenticate 登录服务器。服务器支持 AUTH=PLAIN 时使用 SASL，否则使用 LOGIN。
func Authenticate(c *imapclient.Client, username, password string) error {
	if c.Caps().Has(imap.AuthCap(sasl.Plain)) {
		if err := c.Authenticate(sasl.NewPlainClient("", username, password)); err != nil {
			return fmt.Errorf("imapdiscover: AUTHENTICATE: %w", err)
		}
		return nil
	}
	if err := c.Login(username, password).Wait(); err != nil {
		return fmt.Errorf("imapdiscover: LOGIN: %w", err)
	}
	return nil
}

// Delimiter 返回服务器的层级分隔符。
//
// 它发送 LIST "" ""，服务器只返回分隔符。服务器没有层级时返回 0。
func Delimiter(c *imapclient.Client) (rune, error) {
	mailboxes, err := c.List("", "", nil).Collect()
	if err != nil {
		return 0, fmt.Errorf("imapdiscover: LIST: %w", err)
	}
	if len(mailboxes) == 0 {
		return 0, nil
	}
	return mailboxes[0].Delim, nil
}

// Discover 列出服务器上的邮箱，并逐个报告给 sink。
//
// 服务器支持 IMAP4rev2 或 LIST-EXTENDED 时，订阅状态随 LIST 一起返回；否则所有邮箱都被
// 报告为未订阅。\Noselect 和 \NonExistent 邮箱不可订阅。无论是否出错，Discover 都会
// 结束填充会话。返回报告的邮箱数量。
func Discover(ctx context.Context, c *imapclient.Client, sink subscribe.Sink, options *Options) (int, error) {
	if options == nil {
		options = new(Options)
	}
	logger := options.logger()

	sink.BeginPopulation()

	listOptions := new(imap.ListOptions)
	if caps := c.Caps(); caps.Has(imap.CapIMAP4rev2) || caps.Has(imap.CapListExtended) {
		listOptions.ReturnSubscribed = true
	} else {
		logger.Printf("imapdiscover: 服务器不支持 LIST-EXTENDED，无法获得订阅状态")
	}

	var (
		n      int
		err    error
		warned bool
	)
	cmd := c.List(options.Ref, options.pattern(), listOptions)
	for data := cmd.Next(); data != nil; data = cmd.Next() {
		if err = ctx.Err(); err != nil {
			break
		}
		if options.Delimiter != 0 && data.Delim != 0 && data.Delim != options.Delimiter && !warned {
			logger.Printf("imapdiscover: 服务器分隔符 %q 与树的分隔符 %q 不同", data.Delim, options.Delimiter)
			warned = true
		}

		subscribed := hasAttr(data.Attrs, imap.MailboxAttrSubscribed)
		subscribable := !hasAttr(data.Attrs, imap.MailboxAttrNoSelect) && !hasAttr(data.Attrs, imap.MailboxAttrNonExistent)
		path := namedecode.EncodeIMAP(data.Mailbox)
		if err = sink.AddDiscoveredItem(path, subscribed, subscribable, true); err != nil {
			logger.Printf("imapdiscover: 忽略邮箱 %q: %v", data.Mailbox, err)
			if !errors.Is(err, subscribe.ErrInvalidArgument) {
				break
			}
			err = nil
			continue
		}
		n++
	}

	var closeErr error
	if err := cmd.Close(); err != nil {
		closeErr = fmt.Errorf("imapdiscover: LIST: %w", err)
	}
	return n, errors.Join(err, closeErr, sink.EndPopulation())
}

func hasAttr(attrs []imap.MailboxAttr, attr imap.MailboxAttr) bool {
	for _, a := range attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// Commit 将待提交的订阅变更发送到服务器。
//
// 所有 SUBSCRIBE/UNSUBSCRIBE 命令以流水线方式一次发出，然后依次等待结果。
func Commit(c *imapclient.Client, changes []subscribe.Change) error {
	type pending struct {
		change subscribe.Change
		cmd    *imapclient.Command
	}

	var (
		cmds []pending
		errs []error
	)
	for _, change := range changes {
		name, err := namedecode.DecodeIMAP(change.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("imapdiscover: 邮箱 %q: %w", change.Path, err))
			continue
		}
		var cmd *imapclient.Command
		if change.Subscribed {
			cmd = c.Subscribe(name)
		} else {
			cmd = c.Unsubscribe(name)
		}
		cmds = append(cmds, pending{change, cmd})
	}

	for _, p := range cmds {
		if err := p.cmd.Wait(); err != nil {
			op := "UNSUBSCRIBE"
			if p.change.Subscribed {
				op = "SUBSCRIBE"
			}
			errs = append(errs, fmt.Errorf("imapdiscover: %v %q: %w", op, p.change.Path, err))
		}
	}
	return errors.Join(errs...)
}
