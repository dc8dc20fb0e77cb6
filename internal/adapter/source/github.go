package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/samber/lo"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

const initialCommitMessage = "Initial commit: Add landing page"

// GitHubProvisioner 基于 GitHub REST API 的仓库创建
type GitHubProvisioner struct {
	config *config.GitHubConfig
	client *github.Client
}

// NewGitHubProvisioner 创建GitHub提供者
func NewGitHubProvisioner(cfg *config.GitHubConfig) (*GitHubProvisioner, error) {
	c := *cfg
	if c.DefaultBranch == "" {
		c.DefaultBranch = "main"
	}

	client := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if c.Token != "" {
		client = client.WithAuthToken(c.Token)
	}
	// GitHub可以省略BaseURL，使用默认值
	if c.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimRight(c.BaseURL, "/") + "/")
		if err != nil {
			return nil, err
		}
		client.BaseURL = baseURL
	}

	return &GitHubProvisioner{
		config: &c,
		client: client,
	}, nil
}

func (p *GitHubProvisioner) Owner() string {
	return p.config.Owner
}

func (p *GitHubProvisioner) Branch() string {
	return p.config.DefaultBranch
}

// CreateRepo 创建仓库并以单个提交写入全部文件
//
// 仓库以 auto_init 创建以便使用 git data API, 随后用只包含渲染文件的新 tree
// 生成提交并强制更新默认分支. 返回的名称以 GitHub 为准.
func (p *GitHubProvisioner) CreateRepo(ctx context.Context, name, description string, files []File) (*Repo, error) {
	org := ""
	if p.config.OwnerType == "organization" {
		org = p.config.Owner
	}

	created, _, err := p.client.Repositories.Create(ctx, org, &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(p.config.Private),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, githubError("create_repo", err)
	}

	repoName := lo.Ternary(created.GetName() != "", created.GetName(), name)
	owner := lo.Ternary(created.GetOwner().GetLogin() != "", created.GetOwner().GetLogin(), p.config.Owner)
	branch := lo.Ternary(created.GetDefaultBranch() != "", created.GetDefaultBranch(), p.config.DefaultBranch)

	// 当前分支头
	head, _, err := p.client.Git.GetRef(ctx, owner, repoName, "refs/heads/"+branch)
	if err != nil {
		return nil, githubError("get_ref", err)
	}

	entries := lo.Map(files, func(f File, _ int) *github.TreeEntry {
		return &github.TreeEntry{
			Path:    github.String(f.Path),
			Mode:    github.String("100644"),
			Type:    github.String("blob"),
			Content: github.String(string(f.Content)),
		}
	})
	tree, _, err := p.client.Git.CreateTree(ctx, owner, repoName, "", entries)
	if err != nil {
		return nil, githubError("create_tree", err)
	}

	commit, _, err := p.client.Git.CreateCommit(ctx, owner, repoName, &github.Commit{
		Message: github.String(initialCommitMessage),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: head.GetObject().SHA}},
	}, nil)
	if err != nil {
		return nil, githubError("create_commit", err)
	}

	_, _, err = p.client.Git.UpdateRef(ctx, owner, repoName, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, true)
	if err != nil {
		return nil, githubError("update_ref", err)
	}

	return &Repo{
		Name:          repoName,
		Owner:         owner,
		URL:           created.GetCloneURL(),
		HTMLURL:       created.GetHTMLURL(),
		DefaultBranch: branch,
	}, nil
}

// Exists 仓库是否存在
func (p *GitHubProvisioner) Exists(ctx context.Context, name string) (bool, error) {
	_, _, err := p.client.Repositories.Get(ctx, p.config.Owner, name)
	if err == nil {
		return true, nil
	}
	err = githubError("get_repo", err)
	if pkgErrors.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Delete 删除仓库
func (p *GitHubProvisioner) Delete(ctx context.Context, name string) error {
	_, err := p.client.Repositories.Delete(ctx, p.config.Owner, name)
	if err == nil {
		return nil
	}
	err = githubError("delete_repo", err)
	if pkgErrors.IsNotFound(err) {
		return nil
	}
	return err
}

// githubError SDK 错误转换为 ProviderError
//
// 主限流与二级限流都按 KindRateLimited 处理, 其余按状态码分类.
func githubError(op string, err error) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
		pe       *pkgErrors.ProviderError
	)

	switch {
	case errors.As(err, &rateErr):
		pe = pkgErrors.NewProviderError(constants.ProviderGitHub, op, statusOf(rateErr.Response), rateErr.Message)
		pe.Kind = pkgErrors.KindRateLimited
	case errors.As(err, &abuseErr):
		pe = pkgErrors.NewProviderError(constants.ProviderGitHub, op, statusOf(abuseErr.Response), abuseErr.Message)
		pe.Kind = pkgErrors.KindRateLimited
	case errors.As(err, &respErr):
		msg := respErr.Message
		for _, e := range respErr.Errors {
			if e.Message != "" {
				msg += ": " + e.Message
			}
		}
		pe = pkgErrors.NewProviderError(constants.ProviderGitHub, op, statusOf(respErr.Response), msg)
	default:
		return pkgErrors.WrapTransport(constants.ProviderGitHub, op, err)
	}

	pe.Err = err
	return pe
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
