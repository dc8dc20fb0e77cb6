package deployment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/altnbk/saas-landing-page/internal/adapter/hosting"
	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/adapter/source"
	"github.com/altnbk/saas-landing-page/internal/core/naming"
	"github.com/altnbk/saas-landing-page/internal/core/site"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/internal/pkg/database/dbtest"
	"github.com/altnbk/saas-landing-page/internal/pkg/metrics"
	"github.com/altnbk/saas-landing-page/internal/repository"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// recordingLedger 记录每次成功更新后的状态, 以及状态变更是否附带日志
type recordingLedger struct {
	*repository.DeploymentRepository

	mu          sync.Mutex
	statuses    map[string][]string
	unlogged    int
	transitions int

	// appendHook 非空时在写日志前调用, 返回错误则不写入
	appendHook func(entry *model.DeploymentLog) error
}

func newRecordingLedger(repo *repository.DeploymentRepository) *recordingLedger {
	return &recordingLedger{DeploymentRepository: repo, statuses: make(map[string][]string)}
}

func (l *recordingLedger) Update(ctx context.Context, id, expectedStatus string, mutate repository.Mutation, logs ...*model.DeploymentLog) (*model.Deployment, error) {
	before, err := l.DeploymentRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dep, err := l.DeploymentRepository.Update(ctx, id, expectedStatus, mutate, logs...)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[id] = append(l.statuses[id], dep.Status)
	if dep.Status != before.Status {
		l.transitions++
		if len(logs) == 0 {
			l.unlogged++
		}
	}
	return dep, nil
}

func (l *recordingLedger) AppendLog(ctx context.Context, entry *model.DeploymentLog) error {
	if l.appendHook != nil {
		if err := l.appendHook(entry); err != nil {
			return err
		}
	}
	return l.DeploymentRepository.AppendLog(ctx, entry)
}

func (l *recordingLedger) history(id string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.statuses[id]...)
}

type StateMachineSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *repository.DeploymentRepository
	ledger   *recordingLedger
	source   *source.MockProvisioner
	hosting  *hosting.MockProvisioner
	notifier *notification.MockNotifier
	observed *observer.ObservedLogs
	renderer *site.Renderer
	sm       *StateMachine
}

func TestStateMachineSuite(t *testing.T) {
	suite.Run(t, new(StateMachineSuite))
}

func (s *StateMachineSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = repository.NewDeploymentRepository(dbtest.Open(s.T()))
	s.ledger = newRecordingLedger(s.repo)
	s.source = source.NewMockProvisioner("landing-bot")
	s.hosting = hosting.NewMockProvisioner(constants.BuildStatusSuccess)
	s.notifier = new(notification.MockNotifier)
	s.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	renderer, err := site.NewRenderer("")
	s.Require().NoError(err)
	s.renderer = renderer

	s.sm = s.newStateMachine(Options{PollMaxAttempts: 3})
}

func (s *StateMachineSuite) newStateMachine(opts Options, namerOpts ...naming.Option) *StateMachine {
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.StepTimeout == 0 {
		opts.StepTimeout = 5 * time.Second
	}
	core, observed := observer.New(zap.InfoLevel)
	s.observed = observed
	return NewStateMachine(Deps{
		Logger:   zap.New(core),
		Ledger:   s.ledger,
		Source:   s.source,
		Hosting:  s.hosting,
		Notifier: s.notifier,
		Namer:    naming.New(naming.DefaultPrefix, naming.DefaultMaxSlugLength, namerOpts...),
		Renderer: s.renderer,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}, opts)
}

func (s *StateMachineSuite) newDeployment(org string) *model.Deployment {
	dep := &model.Deployment{
		Owner:            "u1",
		OrganizationName: org,
		SignerName:       "Jane Doe",
		SignerEmail:      "jane@acme.test",
	}
	s.Require().NoError(s.repo.Create(s.ctx, dep))
	return dep
}

func (s *StateMachineSuite) reload(id string) *model.Deployment {
	dep, err := s.repo.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return dep
}

func (s *StateMachineSuite) logMessages(id string) []string {
	logs, err := s.repo.ListLogs(s.ctx, id)
	s.Require().NoError(err)
	msgs := make([]string, 0, len(logs))
	for _, l := range logs {
		msgs = append(msgs, l.Level+": "+l.Message)
	}
	return msgs
}

func (s *StateMachineSuite) notifiedKinds() []notification.Kind {
	var kinds []notification.Kind
	for _, call := range s.notifier.Calls {
		kinds = append(kinds, call.Arguments.Get(1).(*notification.Message).Kind)
	}
	return kinds
}

func (s *StateMachineSuite) TestRunHappyPath() {
	s.hosting.Script(
		hosting.Observation{Status: "active"},
		hosting.Observation{Status: constants.BuildStatusSuccess},
	)
	dep := s.newDeployment("Acme Corp!!")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, res.Status)
	s.False(res.InProgress)
	s.False(res.Noop)
	s.Nil(res.ErrorMessage)

	got := s.reload(dep.ID)
	s.True(strings.HasPrefix(got.SourceRepoName, "landing-acme-corp-"))
	s.True(naming.Valid(got.SourceRepoName))
	s.Equal(naming.ProjectName(got.SourceRepoName), got.HostingProjectRef)
	s.Equal("https://"+got.HostingProjectRef+".pages.dev", got.HostingURL)
	s.Equal("deploy-"+got.HostingProjectRef, got.HostingDeploymentID)
	s.NotEmpty(got.SourceRepoURL)
	s.Equal(res.HostingURL, got.HostingURL)

	files := s.source.Files(got.SourceRepoName)
	s.Require().NotEmpty(files)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	s.Contains(paths, "index.html")

	msgs := s.logMessages(dep.ID)
	s.Equal([]string{
		"info: Starting GitHub repository creation",
		"info: GitHub repository created: " + got.SourceRepoName,
		"info: Creating Cloudflare Pages project",
		"info: Cloudflare Pages project created: " + got.HostingProjectRef,
		"info: Deployment completed successfully!",
	}, msgs)

	s.Equal([]notification.Kind{notification.KindStarted, notification.KindSuccess}, s.notifiedKinds())
	msg := s.notifier.Calls[1].Arguments.Get(1).(*notification.Message)
	s.Equal("jane@acme.test", msg.Recipient)
	s.Equal(got.HostingURL, msg.HostingURL)
}

func (s *StateMachineSuite) TestRunIsIdempotentUnderConcurrency() {
	dep := s.newDeployment("Acme")

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.sm.Run(s.ctx, dep.ID)
		}(i)
	}
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Equal(1, s.source.Calls())
	create, _, _ := s.hosting.Calls()
	s.Equal(1, create)
	s.True(results[0].Noop != results[1].Noop, "exactly one invocation should do the work")

	again, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.True(again.Noop)
	s.Equal(constants.DeploymentStatusLive, again.Status)
	s.Equal(1, s.source.Calls())
}

func (s *StateMachineSuite) TestProgressIsMonotonicAndLogged() {
	s.hosting.Script(
		hosting.Observation{Status: "idle"},
		hosting.Observation{Status: "active"},
		hosting.Observation{Status: constants.BuildStatusSuccess},
	)
	dep := s.newDeployment("Acme")

	_, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)

	history := s.ledger.history(dep.ID)
	s.Require().NotEmpty(history)
	rank := constants.DeploymentStatusRank(constants.DeploymentStatusQueued)
	for _, status := range history {
		next := constants.DeploymentStatusRank(status)
		s.GreaterOrEqual(next, rank, "status went backwards: %v", history)
		rank = next
	}
	s.Equal(constants.DeploymentStatusLive, history[len(history)-1])
	s.Zero(s.ledger.unlogged)
	s.Equal(4, s.ledger.transitions)

	got := s.reload(dep.ID)
	logs, err := s.repo.ListLogs(s.ctx, dep.ID)
	s.Require().NoError(err)
	for _, l := range logs {
		s.False(l.CreatedAt.After(got.UpdatedAt), "log %q written after the final update", l.Message)
	}
}

func (s *StateMachineSuite) TestPollTimeoutIsNonFatal() {
	s.hosting.Script(hosting.Observation{Status: "active"})
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusDeploying, res.Status)
	s.True(res.InProgress)

	got := s.reload(dep.ID)
	s.Equal(constants.DeploymentStatusDeploying, got.Status)
	s.Nil(got.ErrorMessage)

	_, status, _ := s.hosting.Calls()
	s.Equal(3, status)
	s.Contains(s.logMessages(dep.ID), "info: Build still in progress after 3 checks")
	s.Equal([]notification.Kind{notification.KindStarted}, s.notifiedKinds())
}

func (s *StateMachineSuite) TestPollProgressLogFailureIsLogged() {
	s.hosting.Script(hosting.Observation{Status: "active"})
	s.ledger.appendHook = func(entry *model.DeploymentLog) error {
		if strings.HasPrefix(entry.Message, "Build still in progress") {
			return errors.New("disk full")
		}
		return nil
	}
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.True(res.InProgress)

	entries := s.observed.FilterMessage("写入轮询进度日志失败").All()
	s.Require().Len(entries, 1)
	s.Equal(dep.ID, entries[0].ContextMap()["deployment_id"])
	s.Equal("disk full", entries[0].ContextMap()["error"])
}

func (s *StateMachineSuite) TestFailureAfterPartialSuccessIsRecorded() {
	s.hosting.CreateErr = pkgErrors.NewProviderError(constants.ProviderCloudflare, "create_project",
		http.StatusBadRequest, "Invalid project configuration")
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().Error(err)
	s.Equal(constants.DeploymentStatusFailed, res.Status)

	got := s.reload(dep.ID)
	s.Equal(constants.DeploymentStatusFailed, got.Status)
	s.NotEmpty(got.SourceRepoURL)
	s.Require().NotNil(got.ErrorMessage)
	s.Equal("Cloudflare error: Invalid project configuration", *got.ErrorMessage)

	// 不回滚已创建的仓库
	s.Zero(s.source.DeleteCalls)
	exists, err := s.source.Exists(s.ctx, got.SourceRepoName)
	s.Require().NoError(err)
	s.True(exists)

	s.Contains(s.logMessages(dep.ID), "error: Cloudflare error: Invalid project configuration")
	s.Equal([]notification.Kind{notification.KindStarted, notification.KindFailed}, s.notifiedKinds())
}

func (s *StateMachineSuite) TestSourceFailureStopsBeforeHosting() {
	s.source.CreateErr = pkgErrors.NewProviderError(constants.ProviderGitHub, "create_repo",
		http.StatusForbidden, "Resource not accessible by integration")
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().Error(err)
	s.Equal(constants.DeploymentStatusFailed, res.Status)
	s.Require().NotNil(res.ErrorMessage)
	s.Equal("GitHub error: Resource not accessible by integration", *res.ErrorMessage)

	create, _, _ := s.hosting.Calls()
	s.Zero(create)
	s.Equal([]notification.Kind{notification.KindFailed}, s.notifiedKinds())
}

func (s *StateMachineSuite) TestBuildFailureMarksFailed() {
	s.hosting.Script(
		hosting.Observation{Status: "active"},
		hosting.Observation{Status: constants.BuildStatusFailure},
	)
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusFailed, res.Status)
	s.Require().NotNil(res.ErrorMessage)
	s.Equal(deployFailedMessage, *res.ErrorMessage)

	logs, err := s.repo.ListLogs(s.ctx, dep.ID)
	s.Require().NoError(err)
	last := logs[len(logs)-1]
	s.Equal(constants.LogLevelError, last.Level)
	s.Equal(constants.BuildStatusFailure, last.Metadata["stage_status"])
}

func (s *StateMachineSuite) TestRetryablePollErrorCountsAsPending() {
	s.hosting.Script(
		hosting.Observation{Err: pkgErrors.NewProviderError(constants.ProviderCloudflare, "get_deployment",
			http.StatusServiceUnavailable, "upstream unavailable")},
		hosting.Observation{Status: constants.BuildStatusSuccess},
	)
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, res.Status)
}

func (s *StateMachineSuite) TestPermanentPollErrorFails() {
	s.hosting.Script(hosting.Observation{Err: pkgErrors.NewProviderError(constants.ProviderCloudflare,
		"get_deployment", http.StatusForbidden, "Authentication error")})
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusFailed, res.Status)
	s.Require().NotNil(res.ErrorMessage)
	s.Equal("Cloudflare status check failed: Authentication error", *res.ErrorMessage)
}

func (s *StateMachineSuite) TestNotificationFailureIsSwallowed() {
	s.notifier = new(notification.MockNotifier)
	s.notifier.On("Notify", mock.Anything, mock.Anything).Return(assert.AnError)
	s.sm = s.newStateMachine(Options{PollMaxAttempts: 3})
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, res.Status)

	msgs := s.logMessages(dep.ID)
	s.Contains(msgs, "warning: Failed to send started notification: "+assert.AnError.Error())
	s.Contains(msgs, "warning: Failed to send success notification: "+assert.AnError.Error())
	s.Nil(s.reload(dep.ID).ErrorMessage)
}

func (s *StateMachineSuite) TestCollidingNamesNeverBothSucceed() {
	fixed := time.UnixMilli(1700000000000)
	clock := naming.WithClock(func() time.Time { return fixed })
	first := s.newStateMachine(Options{PollMaxAttempts: 1}, clock)
	second := s.newStateMachine(Options{PollMaxAttempts: 1}, clock)

	a := s.newDeployment("Acme Corp!!")
	b := s.newDeployment("Acme Corp!!")

	resA, err := first.Run(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, resA.Status)

	resB, err := second.Run(s.ctx, b.ID)
	s.Require().Error(err)
	s.Equal(constants.DeploymentStatusFailed, resB.Status)
	s.Require().NotNil(resB.ErrorMessage)
	s.Contains(*resB.ErrorMessage, "already exists")

	s.Equal(s.reload(a.ID).SourceRepoName, s.reload(b.ID).SourceRepoName)
	s.Equal(2, s.source.Calls())
}

func (s *StateMachineSuite) TestInvalidInputFailsWithoutProviderCalls() {
	dep := &model.Deployment{
		Owner:            "u1",
		OrganizationName: "Acme",
		SignerName:       "Jane Doe",
		SignerEmail:      "not-an-email",
	}
	s.Require().NoError(s.repo.Create(s.ctx, dep))

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().Error(err)
	s.Equal(constants.DeploymentStatusFailed, res.Status)
	s.Require().NotNil(res.ErrorMessage)
	s.True(strings.HasPrefix(*res.ErrorMessage, "Invalid deployment input: "))
	s.Zero(s.source.Calls())
}

func (s *StateMachineSuite) TestCheckStatusObservesOnce() {
	s.hosting.Script(
		hosting.Observation{Status: "active"},
		hosting.Observation{Status: constants.BuildStatusSuccess},
	)
	s.sm = s.newStateMachine(Options{PollMaxAttempts: 1})
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusDeploying, res.Status)

	res, err = s.sm.CheckStatus(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, res.Status)

	res, err = s.sm.CheckStatus(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusLive, res.Status)

	create, status, _ := s.hosting.Calls()
	s.Equal(1, create)
	s.Equal(2, status)
	s.Equal(1, s.source.Calls())
}

func (s *StateMachineSuite) TestCheckStatusIgnoresRecordsNotDeploying() {
	dep := s.newDeployment("Acme")

	res, err := s.sm.CheckStatus(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusQueued, res.Status)

	_, status, _ := s.hosting.Calls()
	s.Zero(status)
	s.Zero(s.source.Calls())
}

func (s *StateMachineSuite) TestCheckStatusDiscoversDeploymentID() {
	s.hosting.NoDeployment = true
	s.hosting.Script(hosting.Observation{Status: "active"})
	s.sm = s.newStateMachine(Options{PollMaxAttempts: 1})
	dep := s.newDeployment("Acme")

	res, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusDeploying, res.Status)
	s.Empty(s.reload(dep.ID).HostingDeploymentID)

	s.hosting.NoDeployment = false
	res, err = s.sm.CheckStatus(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(constants.DeploymentStatusDeploying, res.Status)

	got := s.reload(dep.ID)
	s.Equal("deploy-"+got.HostingProjectRef, got.HostingDeploymentID)
}

func (s *StateMachineSuite) TestPollStopsOnContextCancel() {
	s.hosting.Script(hosting.Observation{Status: "active"})
	s.sm = s.newStateMachine(Options{PollMaxAttempts: 10, PollInterval: time.Hour})
	dep := s.newDeployment("Acme")

	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()

	res, err := s.sm.Run(ctx, dep.ID)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(constants.DeploymentStatusDeploying, res.Status)
	s.Nil(s.reload(dep.ID).ErrorMessage)
}

func (s *StateMachineSuite) TestReapFailsInterruptedSteps() {
	stuck := s.newDeployment("Stuck")
	_, err := s.repo.Update(s.ctx, stuck.ID, "", func(d *model.Deployment) {
		d.Status = constants.DeploymentStatusCreatingPages
		d.SourceRepoName = "landing-stuck-1"
	})
	s.Require().NoError(err)
	_, err = s.source.CreateRepo(s.ctx, "landing-stuck-1", "", nil)
	s.Require().NoError(err)

	building := s.newDeployment("Building")
	_, err = s.repo.Update(s.ctx, building.ID, "", func(d *model.Deployment) {
		d.Status = constants.DeploymentStatusDeploying
	})
	s.Require().NoError(err)

	fresh := s.newDeployment("Fresh")

	// 不足 staleAfter 时不处理
	n, err := s.sm.Reap(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Zero(n)

	s.sm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = s.sm.Reap(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Equal(1, n)

	got := s.reload(stuck.ID)
	s.Equal(constants.DeploymentStatusFailed, got.Status)
	s.Require().NotNil(got.ErrorMessage)
	s.Equal(stepInterruptedMessage, *got.ErrorMessage)

	logs, err := s.repo.ListLogs(s.ctx, stuck.ID)
	s.Require().NoError(err)
	last := logs[len(logs)-1]
	s.Equal(true, last.Metadata["repo_exists"])
	s.Equal(constants.DeploymentStatusCreatingPages, last.Metadata["step"])

	s.Equal(constants.DeploymentStatusDeploying, s.reload(building.ID).Status)
	s.Equal(constants.DeploymentStatusQueued, s.reload(fresh.ID).Status)
	s.Equal([]notification.Kind{notification.KindFailed}, s.notifiedKinds())
}

func (s *StateMachineSuite) TestRepoCreatedAfterReapIsLogged() {
	entered := make(chan struct{})
	release := make(chan struct{})
	s.source.BeforeCreate = func(ctx context.Context, name string) {
		close(entered)
		<-release
	}
	dep := s.newDeployment("Acme")

	type runResult struct {
		res *Result
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		res, err := s.sm.Run(s.ctx, dep.ID)
		done <- runResult{res, err}
	}()

	<-entered
	time.Sleep(10 * time.Millisecond)
	n, err := s.sm.Reap(s.ctx, time.Millisecond)
	s.Require().NoError(err)
	s.Equal(1, n)

	close(release)
	out := <-done
	s.Require().Error(out.err)
	s.Require().NotNil(out.res)
	s.Equal(constants.DeploymentStatusFailed, out.res.Status)
	s.Equal(1, s.source.Calls())

	got := s.reload(dep.ID)
	s.Equal(constants.DeploymentStatusFailed, got.Status)
	s.Require().NotNil(got.ErrorMessage)
	s.Equal(stepInterruptedMessage, *got.ErrorMessage)

	logs, err := s.repo.ListLogs(s.ctx, dep.ID)
	s.Require().NoError(err)
	last := logs[len(logs)-1]
	s.Equal(constants.LogLevelWarning, last.Level)
	s.Equal("create_repo completed after the deployment was closed: GitHub repository created: "+got.SourceRepoName, last.Message)
	s.Equal(got.SourceRepoName, last.Metadata["repo_name"])
	s.NotEmpty(last.Metadata["repo_url"])
	s.Equal("create_repo", last.Metadata["step"])

	exists, err := s.source.Exists(s.ctx, got.SourceRepoName)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *StateMachineSuite) TestCleanupRemovesResourcesWithoutChangingStatus() {
	dep := s.newDeployment("Acme")

	s.ErrorIs(s.sm.Cleanup(s.ctx, dep.ID), pkgErrors.ErrDeploymentActive)

	_, err := s.sm.Run(s.ctx, dep.ID)
	s.Require().NoError(err)
	got := s.reload(dep.ID)

	s.Require().NoError(s.sm.Cleanup(s.ctx, dep.ID))

	after := s.reload(dep.ID)
	s.Equal(constants.DeploymentStatusLive, after.Status)
	s.Equal(got.UpdatedAt.UnixMilli(), after.UpdatedAt.UnixMilli())

	_, _, deleted := s.hosting.Calls()
	s.Equal(1, deleted)
	s.Equal(1, s.source.DeleteCalls)

	msgs := s.logMessages(dep.ID)
	s.Contains(msgs, "info: Hosting project deleted: "+got.HostingProjectRef)
	s.Contains(msgs, "info: Source repository deleted: "+got.SourceRepoName)
}

func TestOptionsNormalize(t *testing.T) {
	var opts Options
	opts.normalize()

	require.Equal(t, 60*time.Second, opts.StepTimeout)
	assert.Equal(t, 3, opts.PollMaxAttempts)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.ReapBatchSize)
}
