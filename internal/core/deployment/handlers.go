package deployment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/adapter/hosting"
	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/core/naming"
	"github.com/altnbk/saas-landing-page/internal/core/site"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	"github.com/altnbk/saas-landing-page/pkg/utils"
)

type Handler interface {
	Handle(ctx context.Context, dep *model.Deployment) (*model.Deployment, error)
}

type HandlerFunc func(ctx context.Context, dep *model.Deployment) (*model.Deployment, error)

func (h HandlerFunc) Handle(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	return h(ctx, dep)
}

func (sm *StateMachine) registerHandlers() {
	sm.handlers[constants.DeploymentStatusCreatingRepo] = HandlerFunc(sm.HandleCreatingRepo)
	sm.handlers[constants.DeploymentStatusCreatingPages] = HandlerFunc(sm.HandleCreatingPages)
	sm.handlers[constants.DeploymentStatusDeploying] = HandlerFunc(sm.HandleDeploying)
}

// HandleCreatingRepo creating_repo -> creating_pages
func (sm *StateMachine) HandleCreatingRepo(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	// 1. 输入在创建时已校验, 执行前再次校验
	if err := utils.ValidateStruct(dep); err != nil {
		next, ferr := sm.fail(ctx, dep, constants.DeploymentStatusCreatingRepo, "Invalid deployment input: "+err.Error(),
			map[string]interface{}{"step": "validate"})
		if ferr != nil {
			return dep, ferr
		}
		return next, err
	}

	repoName := dep.SourceRepoName
	if repoName == "" {
		repoName = sm.namer.Derive(dep.OrganizationName)
	}

	// 2. 渲染落地页, 所有用户输入均已转义
	files, err := sm.renderer.Render(site.Data{
		OrganizationName: dep.OrganizationName,
		SignerName:       dep.SignerName,
		SignerEmail:      dep.SignerEmail,
	})
	if err != nil {
		next, ferr := sm.fail(ctx, dep, constants.DeploymentStatusCreatingRepo, "Template rendering failed: "+err.Error(),
			map[string]interface{}{"step": "render"})
		if ferr != nil {
			return dep, ferr
		}
		return next, err
	}

	// 3. 创建仓库
	next, err := sm.execute(ctx, dep, Step{
		Name:       "create_repo",
		From:       constants.DeploymentStatusCreatingRepo,
		To:         constants.DeploymentStatusCreatingPages,
		FailPrefix: "GitHub error: ",
		Action: func(ctx context.Context, dep *model.Deployment) (*Outcome, error) {
			repo, err := sm.source.CreateRepo(ctx, repoName, fmt.Sprintf("Landing page for %s", dep.OrganizationName), files)
			if err != nil {
				return nil, err
			}
			return &Outcome{
				Apply: func(d *model.Deployment) {
					d.SourceRepoName = repo.Name
					d.SourceRepoURL = repo.HTMLURL
				},
				Message: fmt.Sprintf("GitHub repository created: %s", repo.Name),
				Meta:    map[string]interface{}{"repo_name": repo.Name, "repo_url": repo.HTMLURL},
			}, nil
		},
	})
	if err != nil {
		return next, err
	}

	sm.notify(ctx, next, notification.KindStarted)
	return next, nil
}

// HandleCreatingPages creating_pages -> deploying
func (sm *StateMachine) HandleCreatingPages(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	return sm.execute(ctx, dep, Step{
		Name:       "create_project",
		From:       constants.DeploymentStatusCreatingPages,
		To:         constants.DeploymentStatusDeploying,
		Intent:     "Creating Cloudflare Pages project",
		FailPrefix: "Cloudflare error: ",
		Action: func(ctx context.Context, dep *model.Deployment) (*Outcome, error) {
			projectName := naming.ProjectName(dep.SourceRepoName)
			project, err := sm.hosting.CreateProject(ctx, projectName, hosting.SourceRef{
				Owner:  sm.source.Owner(),
				Repo:   dep.SourceRepoName,
				Branch: sm.source.Branch(),
			})
			if err != nil {
				return nil, err
			}

			meta := map[string]interface{}{
				"project_name": project.Name,
				"pages_url":    project.URL(),
			}

			// 首次部署可能尚未触发, 查询失败不影响本步骤
			var deploymentID string
			latest, err := sm.hosting.LatestDeployment(ctx, project.Name)
			switch {
			case err != nil:
				sm.logger.Warn("查询最新部署失败", zap.String("deployment_id", dep.ID), zap.Error(err))
			case latest != nil:
				deploymentID = latest.ID
				meta["pages_deployment_id"] = latest.ID
			}

			return &Outcome{
				Apply: func(d *model.Deployment) {
					d.HostingProjectRef = project.Name
					d.HostingURL = project.URL()
					d.HostingDeploymentID = deploymentID
				},
				Message: fmt.Sprintf("Cloudflare Pages project created: %s", project.Name),
				Meta:    meta,
			}, nil
		},
	})
}

// HandleDeploying deploying -> live / failed, 轮询耗尽时保持 deploying
func (sm *StateMachine) HandleDeploying(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	return sm.poll(ctx, dep)
}
