package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configKeys 是可以由配置文件、SUBTREE_* 环境变量或命令行标志设置的键。
var configKeys = []string{
	"server",
	"username",
	"password",
	"tls",
	"delimiter",
	"charset",
	"output",
	"verbose",
	"newsrc",
}

// config 是合并后的运行配置。
type config struct {
	Server    string
	Username  string
	Password  string
	TLS       string // implicit、starttls 或 none
	Delimiter rune   // 0 表示向服务器查询
	Charset   string
	Output    string // text、json 或 yaml
	Verbose   bool
	Newsrc    string
}

// newViper 创建读取了配置文件和环境变量的 viper 实例。
//
// cfgFile 为空时在 $HOME/.config/subtree/config.yaml 查找，找不到不算错误。
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "subtree"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SUBTREE")
	v.AutomaticEnv()

	v.SetDefault("tls", "implicit")
	v.SetDefault("output", "text")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置: %w", err)
		}
	}
	return v, nil
}

// bindFlags 将命令中存在的配置标志绑定到 v。
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, key := range configKeys {
		f := cmd.Flags().Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig 从 v 中读取并校验配置。
func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{
		Server:   v.GetString("server"),
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		TLS:      v.GetString("tls"),
		Charset:  v.GetString("charset"),
		Output:   v.GetString("output"),
		Verbose:  v.GetBool("verbose"),
		Newsrc:   v.GetString("newsrc"),
	}

	switch cfg.TLS {
	case "implicit", "starttls", "none":
	default:
		return nil, fmt.Errorf("未知的 TLS 模式 %q", cfg.TLS)
	}
	switch cfg.Output {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("未知的输出格式 %q", cfg.Output)
	}

	switch delim := v.GetString("delimiter"); utf8.RuneCountInString(delim) {
	case 0:
	case 1:
		cfg.Delimiter, _ = utf8.DecodeRuneInString(delim)
	default:
		return nil, fmt.Errorf("分隔符 %q 必须是单个字符", delim)
	}
	return cfg, nil
}

// address 返回带端口的服务器地址。没有指定端口时，按 TLS 模式使用 tlsPort 或 plainPort。
func (cfg *config) address(tlsPort, plainPort string) (string, error) {
	if cfg.Server == "" {
		return "", errors.New("没有指定服务器 (--server 或 SUBTREE_SERVER)")
	}
	if _, _, err := net.SplitHostPort(cfg.Server); err == nil {
		return cfg.Server, nil
	}
	port := plainPort
	if cfg.TLS == "implicit" {
		port = tlsPort
	}
	return net.JoinHostPort(cfg.Server, port), nil
}

// newLogger 创建写入标准错误的日志记录器。
func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
