// Package ignore 决定 `gs put <dir>` 时哪些文件不上传
package ignore

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是目录下的用户忽略规则文件
const FileName = ".gsignore"

// 强制生效的规则：本地元数据目录、凭证和系统垃圾文件
var defaultRules = []string{
	".gs",
	".git",
	FileName,
	"config.yaml",
	".env",
	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断一个相对路径是否应该跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 读取 root 下的 .gsignore (可选) 并与默认规则合并
func NewMatcher(root string) (*Matcher, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultRules...)}, nil
	}
	ig, err := gitignore.CompileIgnoreFileAndLines(path, defaultRules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ig}, nil
}

// Matches 的 path 是相对 root 的 slash 路径，如 "data/model.bin"
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}

// Walk 遍历 root 下未被忽略的普通文件，rel 为 slash 形式的相对路径。
// 被忽略的目录整体跳过。
func (m *Matcher) Walk(root string, fn func(rel, abs string) error) error {
	return filepath.WalkDir(root, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if m.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(rel, abs)
	})
}
