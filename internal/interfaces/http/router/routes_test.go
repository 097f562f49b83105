package router

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/handler"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, stack *testutil.Stack) *gin.Engine {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = []string{"https://app.madas.io"}

	return NewEngine(EngineConfig{
		AppName:     "madas-test",
		Version:     "test",
		Logger:      stack.Logger,
		JWT:         stack.JWT,
		Sessions:    stack.Sessions,
		CORS:        cors,
		MaxBodySize: 4 << 10,
		ContextWait: 2 * time.Second,
		ReadyChecks: map[string]handler.Pinger{
			"database": handler.PingerFunc(func(context.Context) error { return stack.DB.Ping() }),
		},
	})
}

func TestNewEngine_PublicRoutes(t *testing.T) {
	stack := testutil.NewStack(t)
	r := testEngine(t, stack)

	for _, path := range []string{"/health", "/ready", "/api/v1/system/ping", "/api/v1/system/info"} {
		w := testutil.Do(t, r, testutil.Request{Path: path})
		assert.Equal(t, http.StatusOK, w.Code, "%s: %s", path, w.Body.String())
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}
}

func TestNewEngine_RequiresToken(t *testing.T) {
	stack := testutil.NewStack(t)
	r := testEngine(t, stack)

	for _, path := range []string{"/api/v1/context", "/api/v1/linked-businesses", "/api/v1/link-requests"} {
		w := testutil.Do(t, r, testutil.Request{Path: path})
		testutil.AssertError(t, w, http.StatusUnauthorized, dto.ErrCodeTokenInvalid)
	}
}

func TestNewEngine_LinkManagementPermission(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	stack.SeedOwner(t, "biz-b", "Beta", "owner-2")
	stack.SeedStaff(t, "biz-a", "clerk", "staff", `["orders_view"]`)
	stack.SeedStaff(t, "biz-a", "manager", "staff", `["orders_view","settings_edit"]`)
	r := testEngine(t, stack)

	owner := stack.Token(t, "owner-1", "o@alpha.io", false)
	clerk := stack.Token(t, "clerk", "clerk@alpha.io", false)
	manager := stack.Token(t, "manager", "manager@alpha.io", false)

	t.Run("everyone reads their context", func(t *testing.T) {
		for _, token := range []string{owner, clerk, manager} {
			w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/context", Token: token})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "biz-a", testutil.DecodeData[dto.ContextResponse](t, w).BusinessID)
		}
	})

	t.Run("staff without settings_edit is refused", func(t *testing.T) {
		w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/link-requests", Token: clerk})
		testutil.AssertError(t, w, http.StatusForbidden, dto.ErrCodeForbidden)

		w = testutil.Do(t, r, testutil.Request{
			Method: http.MethodPost, Path: "/api/v1/linked-businesses", Token: clerk,
			Body: map[string]string{"business_id": "biz-b"},
		})
		testutil.AssertError(t, w, http.StatusForbidden, dto.ErrCodeForbidden)
	})

	t.Run("staff with settings_edit manages links", func(t *testing.T) {
		w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/link-requests", Token: manager})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = testutil.Do(t, r, testutil.Request{
			Method: http.MethodPost, Path: "/api/v1/link-requests", Token: manager,
			Body: map[string]string{"target_business_id": "biz-b"},
		})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})

	t.Run("owner manages links", func(t *testing.T) {
		w := testutil.Do(t, r, testutil.Request{
			Method: http.MethodPost, Path: "/api/v1/linked-businesses", Token: owner,
			Body: map[string]string{"business_id": "biz-b", "access_type": "read"},
		})
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestNewEngine_NoBusiness(t *testing.T) {
	stack := testutil.NewStack(t)
	r := testEngine(t, stack)
	token := stack.Token(t, "stranger", "s@example.com", false)

	w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/context", Token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, testutil.DecodeData[dto.ContextResponse](t, w).NoAccess)

	w = testutil.Do(t, r, testutil.Request{Path: "/api/v1/linked-businesses", Token: token})
	testutil.AssertError(t, w, http.StatusForbidden, dto.ErrCodeNoAccess)
}

func TestNewEngine_SessionCount(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	r := testEngine(t, stack)

	testutil.Do(t, r, testutil.Request{Path: "/api/v1/context", Token: stack.Token(t, "owner-1", "o@alpha.io", false)})

	w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/system/info"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, testutil.DecodeData[handler.SystemInfoResponse](t, w).Sessions)
}
