package source

import (
	"context"
	"fmt"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/pkg/constants"
)

// File 提交到仓库的文件
type File struct {
	Path    string
	Content []byte
}

// Repo 已创建的仓库
type Repo struct {
	Name          string
	Owner         string
	URL           string // API / clone 地址
	HTMLURL       string // 浏览器访问地址
	DefaultBranch string
}

// Provisioner 代码仓库平台能力
type Provisioner interface {
	// CreateRepo 创建仓库并提交初始文件, 名称已存在时返回 KindConflict
	CreateRepo(ctx context.Context, name, description string, files []File) (*Repo, error)

	// Exists 仓库是否存在
	Exists(ctx context.Context, name string) (bool, error)

	// Delete 删除仓库, 不存在时视为成功
	Delete(ctx context.Context, name string) error

	// Owner 仓库归属的用户或组织
	Owner() string

	// Branch 初始提交所在分支
	Branch() string
}

// NewProvisioner 按配置创建代码仓库平台实现
func NewProvisioner(cfg *config.SourceConfig) (Provisioner, error) {
	switch cfg.Provider {
	case constants.ProviderGitHub:
		return NewGitHubProvisioner(&cfg.GitHub)
	case constants.ProviderMock:
		return NewMockProvisioner("mock-owner"), nil
	default:
		return nil, fmt.Errorf("不支持的代码仓库平台: %s", cfg.Provider)
	}
}
