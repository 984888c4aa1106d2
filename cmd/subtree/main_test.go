package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/luhaoyun888/go-subscribe-cn"
	"github.com/luhaoyun888/go-subscribe-cn/nntpdiscover"
	"github.com/luhaoyun888/go-subscribe-cn/subtree"
)

// newTestTree 返回一个填充完成的树：
//
//	Archive (不可订阅)
//	  Archive.2023
//	  Archive.2024 (已订阅)
//	INBOX (已订阅)
//	Work
func newTestTree(t *testing.T, view subscribe.View) *subtree.Tree {
	tree := subtree.New(&subtree.Options{
		ServerURI:  "imap://mail.example.org",
		ServerType: subscribe.ServerTypeIMAP,
		View:       view,
	})
	tree.BeginPopulation()
	for _, item := range []struct {
		path                     string
		subscribed, subscribable bool
	}{
		{"INBOX", true, true},
		{"Archive", false, false},
		{"Archive.2023", false, true},
		{"Archive.2024", true, true},
		{"Work", false, true},
	} {
		require.NoError(t, tree.AddDiscoveredItem(item.path, item.subscribed, item.subscribable, true))
	}
	require.NoError(t, tree.EndPopulation())
	return tree
}

func identity(s string) string { return s }

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "subtree", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"imap", "news"}, names)

	for _, flag := range []string{"config", "server", "username", "password", "tls", "delimiter", "output", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(cfgFile, []byte("server: mail.example.org\nusername: alice\ndelimiter: /\noutput: yaml\n"), 0644)
	require.NoError(t, err)

	// 环境变量优先于配置文件
	t.Setenv("SUBTREE_OUTPUT", "json")

	v, err := newViper(cfgFile)
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.org", cfg.Server)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, '/', cfg.Delimiter)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, "implicit", cfg.TLS)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfig_invalid(t *testing.T) {
	for _, tc := range []struct {
		key, value string
	}{
		{"output", "xml"},
		{"tls", "sometimes"},
		{"delimiter", "::"},
	} {
		v, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err, "missing explicit config file should fail")
		assert.Nil(t, v)

		v, err = newViper("")
		require.NoError(t, err)
		v.Set(tc.key, tc.value)
		_, err = loadConfig(v)
		assert.Error(t, err, "%v=%q", tc.key, tc.value)
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &config{Server: "mail.example.org", TLS: "implicit"}
	addr, err := cfg.address("993", "143")
	require.NoError(t, err)
	assert.Equal(t, "mail.example.org:993", addr)

	cfg.TLS = "starttls"
	addr, err = cfg.address("993", "143")
	require.NoError(t, err)
	assert.Equal(t, "mail.example.org:143", addr)

	cfg.Server = "localhost:1143"
	addr, err = cfg.address("993", "143")
	require.NoError(t, err)
	assert.Equal(t, "localhost:1143", addr)

	cfg.Server = ""
	_, err = cfg.address("993", "143")
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	tree := newTestTree(t, nil)
	r, err := collectReport(tree, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "text", r))
	want := `imap://mail.example.org
- [-] Archive
    [ ] 2023
    [x] 2024
  [x] INBOX
  [ ] Work
`
	assert.Equal(t, want, buf.String())
}

func TestApplyEdits(t *testing.T) {
	tree := newTestTree(t, nil)
	edits := editFlags{
		collapse:    true,
		search:      "archive",
		subscribe:   []string{"Work"},
		unsubscribe: []string{"INBOX"},
	}
	changed, err := edits.apply(tree, identity)
	require.NoError(t, err)
	assert.True(t, changed)

	r, err := collectReport(tree, edits.search)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "text", r))
	want := `imap://mail.example.org
+ [-] Archive
  [ ] INBOX
  [x] Work

matches:
  Archive
  Archive.2023
  Archive.2024

changes:
  - INBOX
  + Work
`
	assert.Equal(t, want, buf.String())

	// 重复应用不再产生变化
	edits.collapse = false
	changed, err = edits.apply(tree, identity)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApplyEdits_errors(t *testing.T) {
	tree := newTestTree(t, nil)

	_, err := (&editFlags{subscribe: []string{"Archive"}}).apply(tree, identity)
	assert.Error(t, err, "unsubscribable node")

	_, err = (&editFlags{subscribe: []string{"Missing"}}).apply(tree, identity)
	assert.ErrorIs(t, err, subscribe.ErrNotFound)
}

func TestRenderJSON(t *testing.T) {
	tree := newTestTree(t, nil)
	_, err := tree.SetState("Work", true)
	require.NoError(t, err)
	r, err := collectReport(tree, "%")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", r))

	var got report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *r, got)
	assert.Equal(t, []string{"Archive", "INBOX", "Work"}, got.Matches)
	assert.Equal(t, []changeOutput{{Path: "Work", Subscribed: true}}, got.Changes)
	require.Len(t, got.Rows, 5)
	assert.Equal(t, rowOutput{Path: "Archive.2024", Name: "2024", Level: 1, Subscribed: true, Subscribable: true}, got.Rows[2])
	assert.Equal(t, rowOutput{Path: "Archive", Name: "Archive", Container: true, Open: true}, got.Rows[0])
}

func TestCollectReport_empty(t *testing.T) {
	tree := subtree.New(nil)
	require.NoError(t, tree.EndPopulation())

	r, err := collectReport(tree, "x")
	require.NoError(t, err)
	assert.Empty(t, r.Server)
	assert.Empty(t, r.Rows)
	assert.Empty(t, r.Matches)
}

func TestRenderYAML(t *testing.T) {
	tree := newTestTree(t, nil)
	r, err := collectReport(tree, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", r))
	assert.Contains(t, buf.String(), "rows:\n")

	var got report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *r, got)

	assert.Error(t, render(&buf, "xml", r))
}

func TestLogView(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	tree := newTestTree(t, logView{log: logger})
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "插入行", hook.LastEntry().Message)
	assert.Equal(t, 5, hook.LastEntry().Data["count"])

	hook.Reset()
	delta, err := tree.Rows().Toggle(0)
	require.NoError(t, err)
	assert.Equal(t, -2, delta)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "移除行", entries[0].Message)
	assert.Equal(t, logrus.Fields{"start": 1, "count": 2}, entries[0].Data)
	assert.Equal(t, "行失效", entries[1].Message)
	assert.Equal(t, 0, entries[1].Data["row"])
}

func TestNewsrcFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "newsrc")

	entries, err := readNewsrcFile(name)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries = []nntpdiscover.NewsrcEntry{{Group: "comp.lang.go", Subscribed: true, Read: "1-10"}}
	changes := []subscribe.Change{{Path: "comp.lang.c", Subscribed: true}}
	require.NoError(t, writeNewsrcFile(name, entries, changes))

	got, err := readNewsrcFile(name)
	require.NoError(t, err)
	assert.Equal(t, []nntpdiscover.NewsrcEntry{
		{Group: "comp.lang.go", Subscribed: true, Read: "1-10"},
		{Group: "comp.lang.c", Subscribed: true},
	}, got)

	matches, err := filepath.Glob(name + ".*")
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files should be removed")
}
