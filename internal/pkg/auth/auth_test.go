package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		need  Permission
		want  bool
	}{
		{"admin wildcard", []string{"admin"}, PermDeploymentCleanup, true},
		{"user create", []string{"user"}, PermDeploymentCreate, true},
		{"user run", []string{"user"}, PermDeploymentRun, true},
		{"user cannot cleanup", []string{"user"}, PermDeploymentCleanup, false},
		{"user cannot view all", []string{"user"}, PermDeploymentViewAll, false},
		{"viewer view", []string{"viewer"}, PermDeploymentView, true},
		{"viewer cannot run", []string{"viewer"}, PermDeploymentRun, false},
		{"unknown role", []string{"guest"}, PermDeploymentView, false},
		{"no roles", nil, PermDeploymentView, false},
		{"merged roles", []string{"viewer", "user"}, PermDeploymentRun, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allow(tt.roles, tt.need))
		})
	}
}

func TestMatchTrailingWildcard(t *testing.T) {
	assert.True(t, match("deployment:*", "deployment:view:all"))
	assert.True(t, match("deployment:*", "deployment:run"))
	assert.False(t, match("deployment:*", "template:view"))
	assert.False(t, match("deployment:view", "deployment:view:all"))
}
