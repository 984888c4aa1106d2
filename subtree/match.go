package subtree

import (
	"strings"
)

// MatchPath 检查路径是否与 LIST 风格的模式匹配。
//
// '*' 匹配任意字符序列，'%' 匹配不包含分隔符的任意字符序列。
func MatchPath(path string, delim rune, pattern string) bool {
	var delimStr string
	if delim != 0 {
		delimStr = string(delim)
	}
	return matchPath(path, delimStr, pattern)
}

func matchPath(name, delim, pattern string) bool {
	i := strings.IndexAny(pattern, "*%")
	if i == -1 {
		// 没有更多的通配符
		return name == pattern
	}

	chunk, wildcard, rest := pattern[:i], pattern[i], pattern[i+1:]
	if !strings.HasPrefix(name, chunk) {
		return false
	}
	name = name[len(chunk):]

	// 展开通配符
	var j int
	for j = 0; j < len(name); j++ {
		if wildcard == '%' && strings.HasPrefix(name[j:], delim) && delim != "" {
			break // '%' 不跨越分隔符
		}
		if matchPath(name[j:], delim, rest) {
			return true
		}
	}
	return matchPath(name[j:], delim, rest)
}
