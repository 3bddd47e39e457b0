package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/marketnotify/pkg/ratelimit"
)

// newIdentityRouter 以请求头注入身份，绕过 JWT 签发
func newIdentityRouter(limit ratelimit.Limit, exemptAdmins bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, c.GetHeader("X-Test-User"))
		c.Set(RoleKey, c.GetHeader("X-Test-Role"))
	})
	router.Use(IdentityRateLimit(ratelimit.NewMemoryLimiter(), limit, exemptAdmins))
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doGet(router *gin.Engine, userID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Test-User", userID)
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdentityRateLimitThrottlesByIdentity(t *testing.T) {
	router := newIdentityRouter(ratelimit.Limit{Rate: 2, Period: 15 * time.Minute}, true)

	for i := 0; i < 2; i++ {
		if rec := doGet(router, "u-1", "user"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doGet(router, "u-1", "user")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request over the limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("throttled response should carry a Retry-After header")
	}

	// 不同身份互不影响
	if rec := doGet(router, "u-2", "user"); rec.Code != http.StatusOK {
		t.Errorf("another identity status = %d, want 200", rec.Code)
	}
}

func TestIdentityRateLimitExemptsSuperAdmin(t *testing.T) {
	t.Run("豁免开启", func(t *testing.T) {
		router := newIdentityRouter(ratelimit.Limit{Rate: 1, Period: 15 * time.Minute}, true)
		for i := 0; i < 3; i++ {
			if rec := doGet(router, "admin-1", RoleSuperAdmin); rec.Code != http.StatusOK {
				t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
			}
		}
	})

	t.Run("豁免关闭", func(t *testing.T) {
		router := newIdentityRouter(ratelimit.Limit{Rate: 1, Period: 15 * time.Minute}, false)
		if rec := doGet(router, "admin-1", RoleSuperAdmin); rec.Code != http.StatusOK {
			t.Fatalf("first request status = %d, want 200", rec.Code)
		}
		if rec := doGet(router, "admin-1", RoleSuperAdmin); rec.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status = %d, want 429", rec.Code)
		}
	})
}
