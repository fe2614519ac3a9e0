package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func brotliRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"body": strings.Repeat("form ", 500)})
	})
	r.GET("/small", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/uploads/x.png", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", make([]byte, 4096))
	})
	return r
}

func get(r *gin.Engine, path string, acceptBr bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if acceptBr {
		req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBrotliCompressesLargeJSON(t *testing.T) {
	w := get(brotliRouter(), "/big", true)

	if got := w.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	body, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "form form") {
		t.Error("decompressed body does not match")
	}
}

func TestBrotliPassThrough(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		acceptBr bool
	}{
		{"client without br", "/big", false},
		{"small body", "/small", true},
		{"skipped prefix", "/uploads/x.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(brotliRouter(), tt.path, tt.acceptBr)
			if w.Header().Get("Content-Encoding") != "" {
				t.Errorf("response was compressed")
			}
			if w.Code != http.StatusOK || w.Body.Len() == 0 {
				t.Errorf("status %d, %d bytes", w.Code, w.Body.Len())
			}
		})
	}
}
