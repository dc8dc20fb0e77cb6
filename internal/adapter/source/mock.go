package source

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// MockProvisioner 内存实现, 名称唯一, 用于测试与本地联调
type MockProvisioner struct {
	mu    sync.Mutex
	owner string
	repos map[string][]File

	// CreateErr 非空时 CreateRepo 直接返回该错误
	CreateErr error
	// ExistsErr 非空时 Exists 返回该错误
	ExistsErr error
	// BeforeCreate 非空时在 CreateRepo 加锁前调用, 可用于模拟慢请求
	BeforeCreate func(ctx context.Context, name string)

	CreateCalls int
	DeleteCalls int
}

// NewMockProvisioner 创建内存仓库平台
func NewMockProvisioner(owner string) *MockProvisioner {
	return &MockProvisioner{
		owner: owner,
		repos: make(map[string][]File),
	}
}

func (m *MockProvisioner) Owner() string {
	return m.owner
}

func (m *MockProvisioner) Branch() string {
	return "main"
}

func (m *MockProvisioner) CreateRepo(ctx context.Context, name, description string, files []File) (*Repo, error) {
	if m.BeforeCreate != nil {
		m.BeforeCreate(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if err := ctx.Err(); err != nil {
		return nil, pkgErrors.WrapTransport(constants.ProviderMock, "create_repo", err)
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, ok := m.repos[name]; ok {
		return nil, pkgErrors.NewProviderError(constants.ProviderMock, "create_repo", http.StatusUnprocessableEntity,
			"name already exists on this account")
	}

	m.repos[name] = append([]File(nil), files...)
	return &Repo{
		Name:          name,
		Owner:         m.owner,
		URL:           fmt.Sprintf("https://git.example.test/%s/%s.git", m.owner, name),
		HTMLURL:       fmt.Sprintf("https://git.example.test/%s/%s", m.owner, name),
		DefaultBranch: "main",
	}, nil
}

func (m *MockProvisioner) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	_, ok := m.repos[name]
	return ok, nil
}

func (m *MockProvisioner) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	delete(m.repos, name)
	return nil
}

// Files 返回仓库中已提交的文件
func (m *MockProvisioner) Files(name string) []File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repos[name]
}

// Calls 返回 CreateRepo 调用次数
func (m *MockProvisioner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls
}
