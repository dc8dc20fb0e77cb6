// Package naming 由组织名派生仓库名与托管项目名, 纯函数无 I/O
package naming

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPrefix        = "landing"
	DefaultMaxSlugLength = 30
	FallbackSlug         = "site"

	MaxPrefixLength      = 40
	MaxRepoNameLength    = 100 // GitHub 仓库名上限
	MaxProjectNameLength = 58  // Cloudflare Pages 项目名上限
)

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	nonName   = regexp.MustCompile(`[^a-z0-9-]+`)
	validName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)
)

// Namer 生成 <prefix>-<slug>-<base36 毫秒时间戳>, 同一个 Namer 的后缀严格递增
type Namer struct {
	prefix  string
	maxSlug int
	clock   func() time.Time

	mu   sync.Mutex
	last int64
}

type Option func(*Namer)

// WithClock 替换时钟, 用于测试
func WithClock(clock func() time.Time) Option {
	return func(n *Namer) {
		n.clock = clock
	}
}

// New 创建 Namer, prefix 为空或非法时使用默认值
func New(prefix string, maxSlugLength int, opts ...Option) *Namer {
	prefix = Slugify(prefix)
	if len(prefix) > MaxPrefixLength {
		prefix = strings.TrimRight(prefix[:MaxPrefixLength], "-")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if maxSlugLength <= 0 {
		maxSlugLength = DefaultMaxSlugLength
	}
	n := &Namer{
		prefix:  prefix,
		maxSlug: maxSlugLength,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Slugify 小写, 非字母数字连续片段替换为单个 '-', 去掉首尾 '-'
func Slugify(s string) string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Derive 由组织名派生仓库名
func (n *Namer) Derive(organizationName string) string {
	slug := Slugify(organizationName)
	if len(slug) > n.maxSlug {
		slug = strings.TrimRight(slug[:n.maxSlug], "-")
	}
	if slug == "" {
		slug = FallbackSlug
	}

	suffix := strconv.FormatInt(n.next(), 36)

	// maxSlug 配置过大时再按总长截断, 保证后缀完整
	if budget := MaxRepoNameLength - len(n.prefix) - len(suffix) - 2; budget < len(slug) {
		slug = strings.TrimRight(slug[:budget], "-")
	}
	return n.prefix + "-" + slug + "-" + suffix
}

// next 返回严格递增的毫秒时间戳
func (n *Namer) next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ts := n.clock().UnixMilli()
	if ts <= n.last {
		ts = n.last + 1
	}
	n.last = ts
	return ts
}

// ProjectName 由仓库名确定性地派生托管项目名
//
// 超长时保留末尾的唯一后缀, 截断中间部分.
func ProjectName(repoName string) string {
	name := strings.Trim(nonName.ReplaceAllString(strings.ToLower(repoName), "-"), "-")
	if len(name) <= MaxProjectNameLength {
		return name
	}

	idx := strings.LastIndex(name, "-")
	if idx <= 0 || len(name)-idx >= MaxProjectNameLength {
		return strings.TrimRight(name[:MaxProjectNameLength], "-")
	}
	suffix := name[idx:]
	head := strings.TrimRight(name[:MaxProjectNameLength-len(suffix)], "-")
	return head + suffix
}

// Valid 校验字符集与长度
func Valid(name string) bool {
	return len(name) >= 2 && len(name) <= MaxRepoNameLength && validName.MatchString(name)
}
