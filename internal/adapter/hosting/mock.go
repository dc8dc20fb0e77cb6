package hosting

import (
	"context"
	"net/http"
	"sync"

	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// Observation 脚本化的一次状态观测
type Observation struct {
	Status string
	Err    error
}

// MockProvisioner 内存实现, 构建状态按脚本依次返回, 用尽后重复最后一项
type MockProvisioner struct {
	mu       sync.Mutex
	projects map[string]*Project
	script   []Observation

	// CreateErr 非空时 CreateProject 返回该错误
	CreateErr error
	// LatestErr 非空时 LatestDeployment 返回该错误
	LatestErr error
	// NoDeployment 模拟项目尚未触发部署
	NoDeployment bool

	CreateCalls int
	StatusCalls int
	DeleteCalls int
}

// NewMockProvisioner statuses 为每次 GetDeploymentStatus 的返回
func NewMockProvisioner(statuses ...string) *MockProvisioner {
	m := &MockProvisioner{projects: make(map[string]*Project)}
	for _, s := range statuses {
		m.script = append(m.script, Observation{Status: s})
	}
	return m
}

// Script 替换观测脚本
func (m *MockProvisioner) Script(obs ...Observation) *MockProvisioner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = obs
	return m
}

func (m *MockProvisioner) CreateProject(ctx context.Context, name string, src SourceRef) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, ok := m.projects[name]; ok {
		return nil, pkgErrors.NewProviderError(constants.ProviderMock, "create_project", http.StatusConflict,
			"A project with this name already exists")
	}
	p := &Project{Name: name, Subdomain: name + ".pages.dev"}
	m.projects[name] = p
	return p, nil
}

func (m *MockProvisioner) GetProject(ctx context.Context, ref string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[ref]
	if !ok {
		return nil, pkgErrors.NewProviderError(constants.ProviderMock, "get_project", http.StatusNotFound, "Project not found")
	}
	return p, nil
}

func (m *MockProvisioner) LatestDeployment(ctx context.Context, ref string) (*DeploymentInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	if m.NoDeployment {
		return nil, nil
	}
	return &DeploymentInfo{
		ID:          "deploy-" + ref,
		URL:         "https://" + ref + ".pages.dev",
		Environment: "production",
		Stage:       BuildStatus{Stage: "queued", Status: "idle"},
	}, nil
}

func (m *MockProvisioner) GetDeploymentStatus(ctx context.Context, ref, deploymentID string) (*BuildStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusCalls++
	if len(m.script) == 0 {
		return &BuildStatus{Stage: "deploy", Status: "active"}, nil
	}
	idx := m.StatusCalls - 1
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	obs := m.script[idx]
	if obs.Err != nil {
		return nil, obs.Err
	}
	return &BuildStatus{Stage: "deploy", Status: obs.Status, URL: "https://" + ref + ".pages.dev"}, nil
}

func (m *MockProvisioner) DeleteProject(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	delete(m.projects, ref)
	return nil
}

// Calls 返回各方法调用次数
func (m *MockProvisioner) Calls() (create, status, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.StatusCalls, m.DeleteCalls
}
