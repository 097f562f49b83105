package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testWait = 2 * time.Second

// apiEngine mounts the business context routes on a bare engine
func apiEngine(t *testing.T, stack *testutil.Stack) *gin.Engine {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.SessionAuth(middleware.SessionAuthConfig{
		JWTService: stack.JWT,
		Sessions:   stack.Sessions,
	}))

	contexts := NewContextHandler(stack.Sessions, testWait)
	api.GET("/context", contexts.Get)
	api.DELETE("/context", contexts.SignOut)
	api.POST("/context/refresh", contexts.Refresh)
	api.PUT("/context/viewing", contexts.SetViewing)
	api.GET("/context/permissions/check", contexts.CheckPermissions)

	biz := api.Group("", middleware.RequireBusiness(middleware.BusinessConfig{Wait: testWait}))

	links := NewLinkedBusinessHandler()
	biz.GET("/linked-businesses", links.List)
	biz.POST("/linked-businesses", links.Add)
	biz.DELETE("/linked-businesses/:id", links.Remove)

	requests := NewLinkRequestHandler()
	biz.GET("/link-requests", requests.List)
	biz.POST("/link-requests", requests.Send)
	biz.POST("/link-requests/:id/approve", requests.Approve)
	biz.POST("/link-requests/:id/reject", requests.Reject)
	biz.DELETE("/link-requests/:id", requests.Cancel)
	return r
}

func getContext(t *testing.T, r http.Handler, token string) dto.ContextResponse {
	t.Helper()
	w := testutil.Do(t, r, testutil.Request{Path: "/api/v1/context", Token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return testutil.DecodeData[dto.ContextResponse](t, w)
}
