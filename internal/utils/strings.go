package utils

import (
	"strings"
	"unicode/utf8"
)

func Substr(s string, start int, length int) string {
	runes := []rune(s)

	strLen := utf8.RuneCountInString(s)

	if start < 0 || start >= strLen || length <= 0 {
		return ""
	}

	substrStart := start
	substrEnd := start + length

	if substrEnd > strLen {
		substrEnd = strLen // 限制最大长度
	}

	return string(runes[substrStart:substrEnd])
}

// Truncate 截断到 max 个字符，平台对封禁留言、举报理由等有长度上限
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return Substr(s, 0, max)
}

// NormalizeCommunityName 去掉 "r/"、"/r/" 前缀并转小写
func NormalizeCommunityName(name string) string {
	name = strings.TrimPrefix(name, "/r/")
	name = strings.TrimPrefix(name, "r/")
	return strings.ToLower(name)
}

// NormalizeAuthorName 去掉 "u/"、"/u/" 前缀
func NormalizeAuthorName(name string) string {
	name = strings.TrimPrefix(name, "/u/")
	name = strings.TrimPrefix(name, "u/")
	return name
}
