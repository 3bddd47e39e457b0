package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestExtractTokenPrecedence(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		query  string
		cookie string
		want   string
	}{
		{"仅请求头", "Bearer header-token", "", "", "header-token"},
		{"仅 query", "", "query-token", "", "query-token"},
		{"仅 cookie", "", "", "cookie-token", "cookie-token"},
		{"请求头优先于 query", "Bearer header-token", "query-token", "", "header-token"},
		{"query 优先于 cookie", "", "query-token", "cookie-token", "query-token"},
		{"三者皆无", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = req

			if got := extractToken(c); got != tt.want {
				t.Errorf("extractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
