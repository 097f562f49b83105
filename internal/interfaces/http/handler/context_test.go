package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_GetOwner(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	r := apiEngine(t, stack)

	resp := getContext(t, r, stack.Token(t, "owner-1", "o@alpha.io", false))

	assert.False(t, resp.Loading)
	assert.False(t, resp.NoAccess)
	assert.Equal(t, "biz-a", resp.BusinessID)
	assert.Equal(t, "Alpha", resp.BusinessName)
	assert.Equal(t, string(tenancy.RoleOwner), resp.Role)
	assert.Equal(t, "biz-a", resp.EffectiveBusinessID)
	assert.Equal(t, "EGP", resp.Currency)
	assert.Equal(t, "pro", resp.Plan.Type)
	assert.False(t, resp.SupportMode)
	assert.NotEmpty(t, resp.FlatPermissions)
	assert.NotNil(t, resp.LinkedBusinesses)
}

func TestContextHandler_GetStaff(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	stack.SeedStaff(t, "biz-a", "clerk", "staff", `["orders_view"]`)
	r := apiEngine(t, stack)

	resp := getContext(t, r, stack.Token(t, "clerk", "clerk@alpha.io", false))

	assert.Equal(t, "biz-a", resp.BusinessID)
	assert.Equal(t, "staff", resp.Role)
	assert.Contains(t, resp.FlatPermissions, "orders_view")
	assert.NotContains(t, resp.FlatPermissions, "settings_edit")
}

func TestContextHandler_GetNoAccess(t *testing.T) {
	stack := testutil.NewStack(t)
	r := apiEngine(t, stack)

	resp := getContext(t, r, stack.Token(t, "stranger", "s@example.com", false))

	assert.False(t, resp.Loading)
	assert.True(t, resp.NoAccess)
	assert.Empty(t, resp.BusinessID)
	assert.Empty(t, resp.FlatPermissions)
}

func TestContextHandler_GetSupportMode(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	r := apiEngine(t, stack)

	w := testutil.Do(t, r, testutil.Request{
		Path:  "/api/v1/context?support=true&businessId=biz-a&adminName=Nour",
		Token: stack.Token(t, "agent", "agent@madas.io", true),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeData[dto.ContextResponse](t, w)
	assert.True(t, resp.SupportMode)
	assert.Equal(t, "biz-a", resp.BusinessID)
	assert.Equal(t, string(tenancy.SourceSupport), resp.Source)
	assert.Equal(t, "Nour", resp.UserDisplayName)
}

func TestContextHandler_WithoutSession(t *testing.T) {
	h := NewContextHandler(nil, 0)
	r := gin.New()
	r.GET("/context", h.Get)

	w := testutil.Do(t, r, testutil.Request{Path: "/context"})
	testutil.AssertError(t, w, http.StatusUnauthorized, dto.ErrCodeUnauthorized)
}

func TestContextHandler_Refresh(t *testing.T) {
	stack := testutil.NewStack(t)
	r := apiEngine(t, stack)
	token := stack.Token(t, "late", "late@example.com", false)

	assert.True(t, getContext(t, r, token).NoAccess)

	stack.SeedOwner(t, "biz-late", "Late Co", "late")

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodPost, Path: "/api/v1/context/refresh", Token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeData[dto.ContextResponse](t, w)
	assert.False(t, resp.NoAccess)
	assert.Equal(t, "biz-late", resp.BusinessID)
}

func TestContextHandler_SetViewing(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	stack.SeedOwner(t, "biz-b", "Beta", "owner-2")
	require.NoError(t, stack.Businesses.AddLinkedBusiness(context.Background(), "biz-a", "biz-b"))
	r := apiEngine(t, stack)
	token := stack.Token(t, "owner-1", "o@alpha.io", false)

	put := func(body any) dto.ContextResponse {
		t.Helper()
		w := testutil.Do(t, r, testutil.Request{Method: http.MethodPut, Path: "/api/v1/context/viewing", Token: token, Body: body})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return testutil.DecodeData[dto.ContextResponse](t, w)
	}

	resp := put(map[string]any{"business_id": "biz-b"})
	assert.Equal(t, "biz-a", resp.BusinessID)
	assert.Equal(t, "biz-b", resp.EffectiveBusinessID)
	assert.True(t, resp.IsViewingOtherBusiness)

	// the override survives across requests
	assert.Equal(t, "biz-b", getContext(t, r, token).EffectiveBusinessID)

	w := testutil.Do(t, r, testutil.Request{
		Method: http.MethodPut, Path: "/api/v1/context/viewing", Token: token,
		Body: map[string]any{"business_id": "biz-unknown"},
	})
	testutil.AssertError(t, w, http.StatusUnprocessableEntity, dto.ErrCodeNotLinked)
	assert.Equal(t, "biz-b", getContext(t, r, token).EffectiveBusinessID)

	resp = put(map[string]any{"business_id": nil})
	assert.Equal(t, "biz-a", resp.EffectiveBusinessID)
	assert.False(t, resp.IsViewingOtherBusiness)
}

func TestContextHandler_SetViewingWithoutBusiness(t *testing.T) {
	stack := testutil.NewStack(t)
	r := apiEngine(t, stack)

	w := testutil.Do(t, r, testutil.Request{
		Method: http.MethodPut, Path: "/api/v1/context/viewing",
		Token: stack.Token(t, "stranger", "s@example.com", false),
		Body:  map[string]any{"business_id": "biz-b"},
	})
	testutil.AssertError(t, w, http.StatusForbidden, dto.ErrCodeNoBusiness)
}

func TestContextHandler_CheckPermissions(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	stack.SeedStaff(t, "biz-a", "clerk", "staff", `["orders_view"]`)
	r := apiEngine(t, stack)

	tests := []struct {
		name    string
		uid     string
		query   string
		allowed bool
		mode    string
	}{
		{"staff any defaults", "clerk", "p=orders_view&p=settings_edit", true, "any"},
		{"staff all", "clerk", "p=orders_view&p=settings_edit&mode=all", false, "all"},
		{"staff missing", "clerk", "p=settings_edit", false, "any"},
		{"owner all", "owner-1", "p=orders_view&p=settings_edit&mode=all", true, "all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Do(t, r, testutil.Request{
				Path:  "/api/v1/context/permissions/check?" + tt.query,
				Token: stack.Token(t, tt.uid, tt.uid+"@alpha.io", false),
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := testutil.DecodeData[dto.PermissionCheckResponse](t, w)
			assert.Equal(t, tt.allowed, resp.Allowed)
			assert.Equal(t, tt.mode, resp.Mode)
		})
	}

	w := testutil.Do(t, r, testutil.Request{
		Path:  "/api/v1/context/permissions/check",
		Token: stack.Token(t, "clerk", "clerk@alpha.io", false),
	})
	testutil.AssertError(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
}

func TestContextHandler_SignOut(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.SeedOwner(t, "biz-a", "Alpha", "owner-1")
	r := apiEngine(t, stack)
	token := stack.Token(t, "owner-1", "o@alpha.io", false)

	getContext(t, r, token)
	_, ok := stack.Sessions.Lookup("owner-1")
	require.True(t, ok)

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodDelete, Path: "/api/v1/context", Token: token})
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, ok = stack.Sessions.Lookup("owner-1")
	assert.False(t, ok)
}
