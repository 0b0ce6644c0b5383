package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/middleware"
	"github.com/MrEthical07/goIdentity/permission"
)

// Guards the exported surface consumers compile against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goIdentity.New
	_ = goIdentity.DefaultConfig
	_ = goIdentity.HighSecurityConfig

	var _ *goIdentity.Engine
	var _ goIdentity.Config
	var _ goIdentity.TokenPair
	var _ goIdentity.Claims
	var _ goIdentity.LoginState
	var _ goIdentity.UserDirectory
	var _ goIdentity.CredentialVerifier
	var _ goIdentity.PermissionStore
	var _ goIdentity.AuditSink

	var _ error = goIdentity.ErrAuthenticationFailed
	var _ error = goIdentity.ErrLoginLocked
	var _ error = goIdentity.ErrRefreshInvalid
	var _ error = goIdentity.ErrRefreshReuse
	var _ error = goIdentity.ErrTokenRevoked
	var _ error = goIdentity.ErrRedisUnavailable
	var _ error = goIdentity.ErrRoleCycle

	var _ func(*goIdentity.Engine) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*goIdentity.Engine, string) func(http.Handler) http.Handler = middleware.RequirePermission

	var _ func(*goIdentity.Engine, context.Context, goIdentity.Credentials) (*goIdentity.TokenPair, error) = (*goIdentity.Engine).Issue
	var _ func(*goIdentity.Engine, context.Context, string) (*goIdentity.TokenPair, error) = (*goIdentity.Engine).Refresh
	var _ func(*goIdentity.Engine, context.Context, string) (*goIdentity.Claims, error) = (*goIdentity.Engine).Validate
	var _ func(*goIdentity.Engine, context.Context, string) error = (*goIdentity.Engine).Logout
	var _ func(*goIdentity.Engine, context.Context, string) (permission.PermissionsView, error) = (*goIdentity.Engine).ResolvePermissions
	var _ func(*goIdentity.Engine, context.Context, string, string, string, *time.Time) (permission.RoleAssignment, error) = (*goIdentity.Engine).AssignRole
}
