package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/subtree"
)

// rowOutput 是输出中的一个可见行。
type rowOutput struct {
	Path         string `json:"path" yaml:"path"`
	Name         string `json:"name" yaml:"name"`
	Level        int    `json:"level" yaml:"level"`
	Container    bool   `json:"container,omitempty" yaml:"container,omitempty"`
	Open         bool   `json:"open,omitempty" yaml:"open,omitempty"`
	Subscribed   bool   `json:"subscribed" yaml:"subscribed"`
	Subscribable bool   `json:"subscribable" yaml:"subscribable"`
}

type changeOutput struct {
	Path       string `json:"path" yaml:"path"`
	Subscribed bool   `json:"subscribed" yaml:"subscribed"`
}

// report 是一次运行的完整输出。
type report struct {
	Server  string         `json:"server" yaml:"server"`
	Rows    []rowOutput    `json:"rows" yaml:"rows"`
	Matches []string       `json:"matches,omitempty" yaml:"matches,omitempty"`
	Changes []changeOutput `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// editFlags 是两个子命令共用的修改标志。
type editFlags struct {
	collapse    bool
	search      string
	subscribe   []string
	unsubscribe []string
}

func (e *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&e.collapse, "collapse", false, "折叠所有顶层节点")
	cmd.Flags().StringVar(&e.search, "search", "", "搜索路径（支持 * 和 % 通配符）")
	cmd.Flags().StringSliceVar(&e.subscribe, "subscribe", nil, "订阅指定的名称")
	cmd.Flags().StringSliceVar(&e.unsubscribe, "unsubscribe", nil, "取消订阅指定的名称")
}

// apply 将订阅修改和折叠应用到树上，返回是否有订阅状态发生了变化。
//
// encode 把用户输入的名称转换为树中存储的协议编码形式。
func (e *editFlags) apply(tree *subtree.Tree, encode func(string) string) (bool, error) {
	var changed bool
	for _, edit := range []struct {
		names      []string
		subscribed bool
	}{
		{e.subscribe, true},
		{e.unsubscribe, false},
	} {
		for _, name := range edit.names {
			path := encode(name)
			if ok, err := tree.IsSubscribable(path); err != nil {
				return changed, err
			} else if !ok {
				return changed, fmt.Errorf("%q 不可订阅", name)
			}
			c, err := tree.SetState(path, edit.subscribed)
			if err != nil {
				return changed, err
			}
			changed = changed || c
		}
	}

	if e.collapse {
		rows := tree.Rows()
		// 从后往前折叠，前面的行号保持不变
		for row := rows.RowCount() - 1; row >= 0; row-- {
			if rows.LevelOf(row) == 0 && rows.IsContainer(row) && rows.IsContainerOpen(row) {
				if _, err := rows.Toggle(row); err != nil {
					return changed, err
				}
			}
		}
	}
	return changed, nil
}

// collectReport 从树的行列表中收集输出。
func collectReport(tree *subtree.Tree, search string) (*report, error) {
	server, err := tree.LeafName("")
	if errors.Is(err, subscribe.ErrNotFound) {
		server, err = "", nil // 服务器上没有任何条目
	}
	if err != nil {
		return nil, err
	}
	r := &report{Server: server, Rows: []rowOutput{}}

	rows := tree.Rows()
	for row := 0; row < rows.RowCount(); row++ {
		path, err := rows.CellValue(row, subscribe.ColumnName)
		if err != nil {
			return nil, err
		}
		name, err := rows.CellText(row, subscribe.ColumnName)
		if err != nil {
			return nil, err
		}
		subscribed, err := rows.CellValue(row, subscribe.ColumnSubscribed)
		if err != nil {
			return nil, err
		}
		out := rowOutput{
			Path:       path,
			Name:       name,
			Level:      rows.LevelOf(row),
			Container:  rows.IsContainer(row),
			Subscribed: subscribed == "true",
		}
		out.Open = out.Container && rows.IsContainerOpen(row)
		for _, prop := range rows.CellProperties(row, subscribe.ColumnSubscribed) {
			if prop == subscribe.PropSubscribableTrue {
				out.Subscribable = true
			}
		}
		r.Rows = append(r.Rows, out)
	}

	if search != "" {
		if r.Matches, err = tree.Search(search); err != nil {
			return nil, err
		}
	}
	for _, change := range tree.Changes() {
		r.Changes = append(r.Changes, changeOutput{Path: change.Path, Subscribed: change.Subscribed})
	}
	return r, nil
}

// render 按 format 输出 r。
func render(w io.Writer, format string, r *report) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return renderText(w, r)
	default:
		return fmt.Errorf("未知的输出格式 %q", format)
	}
}

func renderText(w io.Writer, r *report) error {
	var sb strings.Builder
	sb.WriteString(r.Server)
	sb.WriteByte('\n')
	for _, row := range r.Rows {
		sb.WriteString(strings.Repeat("  ", row.Level))
		switch {
		case row.Container && row.Open:
			sb.WriteString("- ")
		case row.Container:
			sb.WriteString("+ ")
		default:
			sb.WriteString("  ")
		}
		switch {
		case !row.Subscribable:
			sb.WriteString("[-] ")
		case row.Subscribed:
			sb.WriteString("[x] ")
		default:
			sb.WriteString("[ ] ")
		}
		sb.WriteString(row.Name)
		sb.WriteByte('\n')
	}

	if len(r.Matches) > 0 {
		sb.WriteString("\nmatches:\n")
		for _, path := range r.Matches {
			fmt.Fprintf(&sb, "  %v\n", path)
		}
	}
	if len(r.Changes) > 0 {
		sb.WriteString("\nchanges:\n")
		for _, change := range r.Changes {
			op := "-"
			if change.Subscribed {
				op = "+"
			}
			fmt.Fprintf(&sb, "  %v %v\n", op, change.Path)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
