// Package namedecode 实现名称解码协作者。
//
// 支持两类协议编码：IMAP 邮箱名称使用的修改版 UTF-7，以及新闻组名称使用的
// 百分号转义 UTF-8（可选地带有服务器的旧字符集）。
package namedecode

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-imap/utf7"
	"github.com/emersion/go-message/charset"

	"github.com/luhaoyun888/go-subscribe-cn"
)

// Family 是名称编码族。
type Family int

const (
	FamilyModifiedUTF7 Family = iota // IMAP 邮件存储
	FamilyEscapedUTF8                // NNTP 新闻组
)

// String 实现 fmt.Stringer 接口。
func (f Family) String() string {
	switch f {
	case FamilyModifiedUTF7:
		return "modified-utf7"
	case FamilyEscapedUTF8:
		return "escaped-utf8"
	default:
		panic(fmt.Errorf("namedecode: unknown family %v", int(f)))
	}
}

// Decoder 是 subscribe.NameDecoder 的实现。
type Decoder struct {
	family  Family
	charset string
}

var _ subscribe.NameDecoder = (*Decoder)(nil)

// IMAP 返回修改版 UTF-7 名称的解码器。
func IMAP() *Decoder {
	return &Decoder{family: FamilyModifiedUTF7}
}

// News 返回转义 UTF-8 名称的解码器。
//
// 如果 cs 不为空，反转义后不是合法 UTF-8 的名称将按该字符集（例如 "iso-8859-1"）转换。
func News(cs string) *Decoder {
	return &Decoder{family: FamilyEscapedUTF8, charset: cs}
}

// Family 返回解码器的编码族。
func (d *Decoder) Family() Family {
	return d.family
}

// DecodeLeaf 实现 subscribe.NameDecoder 接口。
func (d *Decoder) DecodeLeaf(raw string, mode subscribe.DecodeMode) (string, error) {
	switch d.family {
	case FamilyModifiedUTF7:
		s, err := DecodeIMAP(raw)
		if err != nil {
			return "", fmt.Errorf("namedecode: 解码 %q: %w", raw, err)
		}
		return s, nil
	case FamilyEscapedUTF8:
		s := raw
		if mode == subscribe.DecodeEscapedPath {
			var err error
			if s, err = url.PathUnescape(raw); err != nil {
				return "", fmt.Errorf("namedecode: 反转义 %q: %w", raw, err)
			}
		}
		return d.toUTF8(s)
	default:
		panic(fmt.Errorf("namedecode: unknown family %v", int(d.family)))
	}
}

// toUTF8 将非 UTF-8 的名称按配置的字符集转换。没有配置字符集时替换非法字节。
func (d *Decoder) toUTF8(s string) (string, error) {
	if utf8.ValidString(s) {
		return s, nil
	}
	if d.charset == "" {
		return strings.ToValidUTF8(s, "�"), nil
	}

	r, err := charset.Reader(d.charset, strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("namedecode: 字符集 %q: %w", d.charset, err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("namedecode: 字符集 %q: %w", d.charset, err)
	}
	return string(b), nil
}

// EncodeIMAP 将 UTF-8 邮箱名称编码为协议使用的修改版 UTF-7。
func EncodeIMAP(name string) string {
	raw, err := utf7.Encoding.NewEncoder().String(name)
	if err != nil {
		return name
	}
	return raw
}

// DecodeIMAP 将修改版 UTF-7 邮箱名称解码为 UTF-8。
//
// 未终止的 base64 段、编码了可打印 ASCII 的段以及原始的非 ASCII 字节都会返回 utf7.ErrInvalidUTF7。
func DecodeIMAP(raw string) (string, error) {
	return utf7.Encoding.NewDecoder().String(raw)
}

// EscapeNews 将新闻组名称转义为树中存储的形式。
func EscapeNews(name string) string {
	return url.PathEscape(name)
}
