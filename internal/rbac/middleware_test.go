package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-payments/internal/auth"

	"github.com/gin-gonic/gin"
)

func identity(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func serve(t *testing.T, role string, handlers ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	chain := append([]gin.HandlerFunc{identity(role)}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", chain...)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serve(t, RoleSuperAdmin, RequireAnyRole(RoleAdmin)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowedRolePasses(t *testing.T) {
	if code := serve(t, RoleSeller, RequireAnyRole(RoleSeller, RoleFinanceOps)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_WrongRoleForbidden(t *testing.T) {
	if code := serve(t, RoleBuyer, RequireAnyRole(RoleAdmin)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serve(t, RoleFinanceOps, RequireAnyRole(RoleAdmin)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, RoleFinanceOps, RequireAnyRole(RoleAdmin, RoleFinanceOps)); code != 200 {
		t.Fatalf("hidden role must pass when explicitly allowed, got %d", code)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	if code := serve(t, RoleBuyer, RequireAuthenticated()); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireAuthenticated(), func(c *gin.Context) { c.Status(200) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != 401 {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
}
