package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		TenantID: "tenant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(signed(t, jwt.SigningMethodHS256, []byte(secret), validClaims()), secret)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, "user-7", claims.Subject)

	_, err = ParseToken(signed(t, jwt.SigningMethodHS256, []byte("other"), validClaims()), secret)
	assert.Error(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseToken(signed(t, jwt.SigningMethodHS256, []byte(secret), expired), secret)
	assert.Error(t, err)

	noTenant := validClaims()
	noTenant.TenantID = ""
	_, err = ParseToken(signed(t, jwt.SigningMethodHS256, []byte(secret), noTenant), secret)
	assert.Error(t, err)

	_, err = ParseToken(signed(t, jwt.SigningMethodHS512, []byte(secret), validClaims()), secret)
	assert.Error(t, err)
}

func authRouter(disabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret, disabled))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, TenantID(c)+"/"+UserID(c))
	})
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name     string
		disabled bool
		header   string
		value    string
		wantCode int
		wantBody string
	}{
		{
			name:     "valid bearer token",
			header:   "Authorization",
			value:    "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), validClaims()),
			wantCode: http.StatusOK,
			wantBody: "tenant-1/user-7",
		},
		{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "garbage token",
			header:   "Authorization",
			value:    "Bearer not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "tenant header when disabled",
			disabled: true,
			header:   TenantHeader,
			value:    "tenant-9",
			wantCode: http.StatusOK,
			wantBody: "tenant-9/",
		},
		{
			name:     "disabled without header",
			disabled: true,
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			authRouter(tt.disabled).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestAuth_RejectionBody(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string           `json:"code"`
			Message string           `json:"message"`
			Kind    entity.ErrorKind `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, entity.CodeUnauthorized, body.Error.Code)
	assert.Equal(t, entity.KindUnauthorized, body.Error.Kind)
	assert.Equal(t, "missing bearer token", body.Error.Message)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
