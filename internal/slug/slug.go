// Package slug generates the random three-word labels that name preview sites
// and reserves a unique directory for each of them.
package slug

import (
	petname "github.com/dustinkirkland/golang-petname"
)

// Words 是一个 slug 包含的单词数。
const Words = 3

// Separator 连接各个单词。
const Separator = "-"

// Generator 产生一个候选 slug。
type Generator func() string

// PetnameGenerator 返回基于词表的随机名生成器，例如 "wildly-brave-otter"。
func PetnameGenerator(words int) Generator {
	return func() string {
		return petname.Generate(words, Separator)
	}
}

// Valid 判断 s 是否满足 slug 字符集约束：非空，仅包含 ASCII 字母、数字与连字符。
// Host 头由客户端控制，路由层每次请求都必须重新校验。
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '-':
		default:
			return false
		}
	}
	return true
}
