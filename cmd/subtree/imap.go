package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/imapdiscover"
	"github.com/luhaoyun888/go-subscribe-cn/namedecode"
	"github.com/luhaoyun888/go-subscribe-cn/subtree"
)

var imapTLSModes = map[string]imapdiscover.TLSMode{
	"implicit": imapdiscover.TLSImplicit,
	"starttls": imapdiscover.TLSStartTLS,
	"none":     imapdiscover.TLSNone,
}

func newIMAPCmd(opts *rootOptions) *cobra.Command {
	var edits editFlags

	cmd := &cobra.Command{
		Use:   "imap",
		Short: "列出 IMAP 服务器上的邮箱及其订阅状态",
		Long: `列出 IMAP 服务器上的邮箱及其订阅状态。

--subscribe 和 --unsubscribe 接受 UTF-8 邮箱名称，修改会立即提交到服务器。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.config, opts.logger

			addr, err := cfg.address("993", "143")
			if err != nil {
				return err
			}
			c, err := imapdiscover.Dial(addr, &imapdiscover.DialOptions{TLSMode: imapTLSModes[cfg.TLS]})
			if err != nil {
				return err
			}
			defer func() {
				if logoutErr := c.Logout().Wait(); logoutErr != nil {
					logger.Debugf("LOGOUT: %v", logoutErr)
				}
				c.Close()
			}()

			if cfg.Username != "" {
				if err := imapdiscover.Authenticate(c, cfg.Username, cfg.Password); err != nil {
					return err
				}
			}

			delim := cfg.Delimiter
			if delim == 0 {
				if delim, err = imapdiscover.Delimiter(c); err != nil {
					return err
				}
				logger.Debugf("服务器分隔符 %q", delim)
			}

			tree := subtree.New(&subtree.Options{
				Delimiter:  delim,
				ServerURI:  "imap://" + addr,
				ServerType: subscribe.ServerTypeIMAP,
				Decoder:    namedecode.IMAP(),
				View:       logView{log: logger},
				Listener: subscribe.ListenerFunc(func() {
					logger.Debug("填充完成")
				}),
			})
			n, err := imapdiscover.Discover(cmd.Context(), c, tree, &imapdiscover.Options{
				Delimiter: delim,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			logger.Infof("发现 %v 个邮箱", n)

			changed, err := edits.apply(tree, namedecode.EncodeIMAP)
			if err != nil {
				return err
			}
			r, err := collectReport(tree, edits.search)
			if err != nil {
				return err
			}
			if changed {
				if err := imapdiscover.Commit(c, tree.Changes()); err != nil {
					return fmt.Errorf("提交订阅: %w", err)
				}
			}
			return render(cmd.OutOrStdout(), cfg.Output, r)
		},
	}
	edits.register(cmd)
	return cmd
}
