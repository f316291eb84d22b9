package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/store"
)

func TestWriteError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{log: zap.NewNop()}

	cases := []struct {
		err    error
		status int
	}{
		{store.ErrDuplicateKey, http.StatusConflict},
		{store.ErrNotFound, http.StatusNotFound},
		{store.ErrUnsupportedPattern, http.StatusBadRequest},
		{store.ErrExpiredResource, http.StatusGone},
		{store.ErrInvalidPassword, http.StatusForbidden},
		// Wrapped errors must map the same way.
		{errors.Join(errors.New("message abc"), store.ErrDuplicateKey), http.StatusConflict},
		{errors.New("driver exploded"), http.StatusInternalServerError},
	}
	for _, cs := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/messages", nil)

		s.writeError(c, cs.err)
		if w.Code != cs.status {
			t.Fatalf("writeError(%v) = %d, want %d", cs.err, w.Code, cs.status)
		}
	}
}

func TestFilterParams_CoverIndexedFields(t *testing.T) {
	// Every query parameter the API accepts must belong to at least one
	// access pattern, or the planner would reject it on every request.
	indexed := map[string]bool{}
	for _, p := range store.MessagePatterns() {
		for _, f := range p.Fields {
			indexed[f] = true
		}
	}
	for param := range filterParams {
		if !indexed[param] {
			t.Errorf("query parameter %s matches no access pattern", param)
		}
	}
}
