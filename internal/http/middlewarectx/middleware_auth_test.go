package middlewarectx_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/patentsbrowser/patentsBrowser-sub002/internal/http/middlewarectx"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/lib/jwt"
	"github.com/patentsbrowser/patentsBrowser-sub002/internal/services/lifecycle"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	validToken, err := maker.GenerateToken("testuser", "user", "uid-1")
	if err != nil {
		t.Fatal(err)
	}
	expiredMaker := jwt.NewJWTMaker("test-secret", -time.Minute)
	expiredToken, err := expiredMaker.GenerateToken("testuser", "user", "uid-1")
	if err != nil {
		t.Fatal(err)
	}

	handlerCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		assert.Equal(t, "testuser", r.Context().Value(middlewarectx.User))
		assert.Equal(t, "user", r.Context().Value(middlewarectx.Role))
		assert.Equal(t, "uid-1", r.Context().Value(middlewarectx.UserUID))
		w.WriteHeader(http.StatusOK)
	})

	mw := middlewarectx.JWTMiddleware(maker, newNoopLogger())(nextHandler)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "wrong header scheme",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "garbage token",
			authHeader:     "Bearer not.a.token",
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + expiredToken,
			wantStatusCode: http.StatusUnauthorized,
			wantCalled:     false,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer " + validToken,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled = false

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
		})
	}
}

type GateMock struct {
	mock.Mock
}

func (m *GateMock) CheckAccess(ctx context.Context, userUID string) (*lifecycle.Verdict, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*lifecycle.Verdict), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSubscriptionGate(t *testing.T) {
	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*GateMock)
		wantStatusCode int
		wantBody       string
		wantCalled     bool
	}{
		{
			name:    "allowed request passes through",
			userUID: "uid-1",
			setupMock: func(m *GateMock) {
				m.On("CheckAccess", mock.Anything, "uid-1").
					Return(&lifecycle.Verdict{Allowed: true, Status: "trial"}, nil)
			},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:    "expired trial is denied with the verdict attached",
			userUID: "uid-1",
			setupMock: func(m *GateMock) {
				m.On("CheckAccess", mock.Anything, "uid-1").
					Return(&lifecycle.Verdict{Allowed: false, Status: "inactive"}, lifecycle.ErrTrialExpired)
			},
			wantStatusCode: http.StatusForbidden,
			wantBody:       `"subscription_status":"inactive"`,
		},
		{
			name:    "cancelled subscription is denied",
			userUID: "uid-1",
			setupMock: func(m *GateMock) {
				m.On("CheckAccess", mock.Anything, "uid-1").
					Return(&lifecycle.Verdict{Allowed: false, Status: "cancelled"}, lifecycle.ErrCancelled)
			},
			wantStatusCode: http.StatusForbidden,
			wantBody:       `"message":"subscription was cancelled"`,
		},
		{
			name:    "unknown account returns not found",
			userUID: "ghost",
			setupMock: func(m *GateMock) {
				m.On("CheckAccess", mock.Anything, "ghost").
					Return(nil, lifecycle.ErrUserNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantBody:       `"message":"user not found"`,
		},
		{
			name:           "missing identity",
			userUID:        "",
			setupMock:      func(_ *GateMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := new(GateMock)
			tt.setupMock(gate)

			handlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				handlerCalled = true
				w.WriteHeader(http.StatusOK)
			})

			mw := middlewarectx.SubscriptionGate(gate, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				req = req.WithContext(ctx)
			}

			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			if tt.wantBody != "" {
				assert.True(t, strings.Contains(rec.Body.String(), tt.wantBody),
					"response body should contain %s, got %s", tt.wantBody, rec.Body.String())
			}
			gate.AssertExpectations(t)
		})
	}
}
