package nntpdiscover

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/namedecode"
)

// NewsrcEntry 是 .newsrc 文件中的一行。
type NewsrcEntry struct {
	Group      string
	Subscribed bool
	Read       string // 已读文章范围，原样保留
}

// ReadNewsrc 解析 .newsrc 格式的订阅列表。
//
// 每行的形式为 "group: ranges"（已订阅）或 "group! ranges"（未订阅）。
// 空行和 "options" 行会被忽略。
func ReadNewsrc(r io.Reader) ([]NewsrcEntry, error) {
	var (
		entries []NewsrcEntry
		lineNo  int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "options" || strings.HasPrefix(line, "options ") {
			continue
		}

		i := strings.IndexAny(line, ":!")
		if i <= 0 {
			return nil, fmt.Errorf("nntpdiscover: newsrc 第 %v 行: 缺少 ':' 或 '!'", lineNo)
		}
		entries = append(entries, NewsrcEntry{
			Group:      strings.TrimSpace(line[:i]),
			Subscribed: line[i] == ':',
			Read:       strings.TrimSpace(line[i+1:]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("nntpdiscover: newsrc: %w", err)
	}
	return entries, nil
}

// WriteNewsrc 将订阅状态写回 .newsrc 格式。
//
// changes 覆盖 entries 中对应新闻组的状态；不在 entries 中的新增订阅追加到末尾。
func WriteNewsrc(w io.Writer, entries []NewsrcEntry, changes []subscribe.Change) error {
	state := make(map[string]bool, len(changes))
	for _, change := range changes {
		state[change.Path] = change.Subscribed
	}

	bw := bufio.NewWriter(w)
	for _, entry := range entries {
		subscribed := entry.Subscribed
		if s, ok := state[namedecode.EscapeNews(entry.Group)]; ok {
			subscribed = s
			delete(state, namedecode.EscapeNews(entry.Group))
		}
		writeNewsrcLine(bw, entry.Group, subscribed, entry.Read)
	}
	for _, change := range changes {
		if _, ok := state[change.Path]; !ok || !change.Subscribed {
			continue
		}
		// 写回服务器上的原始字节，不做 UTF-8 修正
		group, err := url.PathUnescape(change.Path)
		if err != nil {
			return fmt.Errorf("nntpdiscover: 新闻组 %q: %w", change.Path, err)
		}
		writeNewsrcLine(bw, group, true, "")
	}
	return bw.Flush()
}

func writeNewsrcLine(w *bufio.Writer, group string, subscribed bool, read string) {
	mark := "!"
	if subscribed {
		mark = ":"
	}
	if read == "" {
		fmt.Fprintf(w, "%s%s\n", group, mark)
	} else {
		fmt.Fprintf(w, "%s%s %s\n", group, mark, read)
	}
}

// DiscoverOptions 包含发现选项。
type DiscoverOptions struct {
	// Wildmat 是 LIST ACTIVE 的新闻组模式。如果为空，则列出所有新闻组。
	Wildmat string
	// Newsrc 提供本地的订阅状态。
	Newsrc []NewsrcEntry
}

// Discover 列出服务器上的新闻组，并逐个报告给 sink。
//
// NNTP 本身没有订阅状态：Newsrc 中已订阅的新闻组先通过 MarkSubscribed 标记，随后
// LIST ACTIVE 返回的新闻组以不覆盖已有状态的方式加入。状态为 "x" 的新闻组不可订阅。
// 无论是否出错，Discover 都会结束填充会话。返回报告的新闻组数量。
func Discover(ctx context.Context, c *Client, sink subscribe.Sink, options *DiscoverOptions) (int, error) {
	if options == nil {
		options = new(DiscoverOptions)
	}
	logger := c.options.logger()

	sink.BeginPopulation()

	var err error
	for _, entry := range options.Newsrc {
		if !entry.Subscribed {
			continue
		}
		if err = sink.MarkSubscribed(namedecode.EscapeNews(entry.Group)); err != nil {
			logger.Printf("nntpdiscover: 忽略 newsrc 新闻组 %q: %v", entry.Group, err)
			if !errors.Is(err, subscribe.ErrInvalidArgument) {
				return 0, errors.Join(err, sink.EndPopulation())
			}
			err = nil
		}
	}

	var n int
	err = c.ListActiveFunc(options.Wildmat, func(g Group) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := namedecode.EscapeNews(g.Name)
		if err := sink.AddDiscoveredItem(path, false, g.Status != "x", false); err != nil {
			logger.Printf("nntpdiscover: 忽略新闻组 %q: %v", g.Name, err)
			if !errors.Is(err, subscribe.ErrInvalidArgument) {
				return err
			}
			return nil
		}
		n++
		return nil
	})
	return n, errors.Join(err, sink.EndPopulation())
}
