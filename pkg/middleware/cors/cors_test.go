package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(origins))
	router.GET("/groups/:id/timetable/export", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func request(router *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, "/groups/g/timetable/export", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	router := newRouter([]string{"https://School.example/"})

	w := request(router, http.MethodGet, "https://school.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://school.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Equal(t, []string{"Origin"}, w.Header().Values("Vary"))

	w = request(router, http.MethodGet, "https://other.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter([]string{"https://school.example"})

	w := request(router, http.MethodOptions, "https://school.example", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	w = request(router, http.MethodOptions, "https://evil.example", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSWildcard(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		router := newRouter(origins)

		w := request(router, http.MethodOptions, "", true)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

		w = request(router, http.MethodGet, "https://any.example", false)
		assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSPlainOptionsReachesRouter(t *testing.T) {
	router := newRouter(nil)

	w := request(router, http.MethodOptions, "", false)
	assert.NotEqual(t, http.StatusNoContent, w.Code)
}
