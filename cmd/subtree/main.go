// subtree 连接到 IMAP 或 NNTP 服务器，列出可订阅的名称空间并修改订阅。
//
// 用法示例：
//
//	subtree imap --server imap.example.org --username alice --subscribe Archive/2024
//	subtree news --server news.example.org --newsrc ~/.newsrc --search 'comp.lang.*'
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootOptions 保存根命令解析出的全局状态。
type rootOptions struct {
	cfgFile string
	config  *config
	logger  *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := new(rootOptions)

	cmd := &cobra.Command{
		Use:           "subtree",
		Short:         "浏览并修改 IMAP 邮箱和新闻组的订阅",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(opts.cfgFile)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			if opts.config, err = loadConfig(v); err != nil {
				return err
			}
			opts.logger = newLogger(opts.config.Verbose)
			if used := v.ConfigFileUsed(); used != "" {
				opts.logger.Debugf("使用配置文件 %v", used)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "配置文件 (默认为 $HOME/.config/subtree/config.yaml)")
	flags.String("server", "", "服务器地址 (host 或 host:port)")
	flags.String("username", "", "用户名")
	flags.String("password", "", "密码")
	flags.String("tls", "implicit", "TLS 模式: implicit、starttls 或 none")
	flags.String("delimiter", "", "层级分隔符 (默认向服务器查询)")
	flags.StringP("output", "o", "text", "输出格式: text、json 或 yaml")
	flags.BoolP("verbose", "v", false, "输出调试日志")

	cmd.AddCommand(newIMAPCmd(opts))
	cmd.AddCommand(newNewsCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
