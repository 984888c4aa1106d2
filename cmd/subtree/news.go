package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/namedecode"
	"github.com/luhaoyun888/go-subscribe-cn/nntpdiscover"
	"github.com/luhaoyun888/go-subscribe-cn/subtree"
)

func newNewsCmd(opts *rootOptions) *cobra.Command {
	var (
		edits   editFlags
		wildmat string
	)

	cmd := &cobra.Command{
		Use:   "news",
		Short: "列出 NNTP 服务器上的新闻组及其订阅状态",
		Long: `列出 NNTP 服务器上的新闻组及其订阅状态。

NNTP 服务器不保存订阅，订阅状态从 --newsrc 指定的文件读取，修改也写回该文件。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.config, opts.logger

			entries, err := readNewsrcFile(cfg.Newsrc)
			if err != nil {
				return err
			}

			addr, err := cfg.address("563", "119")
			if err != nil {
				return err
			}
			clientOptions := &nntpdiscover.Options{Logger: logger}
			var c *nntpdiscover.Client
			switch cfg.TLS {
			case "implicit":
				c, err = nntpdiscover.DialTLS(addr, nil, clientOptions)
			case "none":
				c, err = nntpdiscover.Dial(addr, clientOptions)
			default:
				return fmt.Errorf("NNTP 不支持 TLS 模式 %q", cfg.TLS)
			}
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Quit(); err != nil {
					logger.Debugf("QUIT: %v", err)
				}
			}()

			if cfg.Username != "" {
				if err := c.Auth(cfg.Username, cfg.Password); err != nil {
					return err
				}
			}

			delim := cfg.Delimiter
			if delim == 0 {
				delim = subtree.DefaultDelimiter
			}
			tree := subtree.New(&subtree.Options{
				Delimiter:    delim,
				ServerURI:    "news://" + addr,
				ServerType:   subscribe.ServerTypeNNTP,
				FullNameMode: true,
				Decoder:      namedecode.News(cfg.Charset),
				View:         logView{log: logger},
				Listener: subscribe.ListenerFunc(func() {
					logger.Debug("填充完成")
				}),
			})
			n, err := nntpdiscover.Discover(cmd.Context(), c, tree, &nntpdiscover.DiscoverOptions{
				Wildmat: wildmat,
				Newsrc:  entries,
			})
			if err != nil {
				return err
			}
			logger.Infof("发现 %v 个新闻组", n)

			changed, err := edits.apply(tree, namedecode.EscapeNews)
			if err != nil {
				return err
			}
			r, err := collectReport(tree, edits.search)
			if err != nil {
				return err
			}
			if changed {
				if cfg.Newsrc == "" {
					logger.Warn("没有指定 --newsrc，订阅修改不会被保存")
				} else if err := writeNewsrcFile(cfg.Newsrc, entries, tree.Changes()); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(), cfg.Output, r)
		},
	}
	edits.register(cmd)
	cmd.Flags().StringVar(&wildmat, "groups", "", "LIST ACTIVE 使用的 wildmat，例如 'comp.*'")
	cmd.Flags().String("newsrc", "", "newsrc 文件")
	cmd.Flags().String("charset", "", "非 UTF-8 新闻组名称使用的字符集，例如 iso-8859-1")
	return cmd
}

// readNewsrcFile 读取 newsrc 文件。文件不存在时返回空列表。
func readNewsrcFile(name string) ([]nntpdiscover.NewsrcEntry, error) {
	if name == "" {
		return nil, nil
	}
	f, err := os.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	return nntpdiscover.ReadNewsrc(f)
}

// writeNewsrcFile 先写入同一目录下的临时文件，再替换 name。
func writeNewsrcFile(name string, entries []nntpdiscover.NewsrcEntry, changes []subscribe.Change) error {
	f, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := nntpdiscover.WriteNewsrc(f, entries, changes); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}
