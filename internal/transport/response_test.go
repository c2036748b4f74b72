package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind entity.ErrorKind
		want int
	}{
		{entity.KindValidation, http.StatusBadRequest},
		{entity.KindConflict, http.StatusConflict},
		{entity.KindBusiness, http.StatusUnprocessableEntity},
		{entity.KindNotFound, http.StatusNotFound},
		{entity.KindTransient, http.StatusServiceUnavailable},
		{entity.KindUnauthorized, http.StatusUnauthorized},
		{entity.KindInternal, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.kind))
		})
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("app error keeps code and message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, entity.ErrSlotUnavailable)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := errorBody(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, entity.CodeSlotUnavailable, resp.Error.Code)
		assert.Equal(t, entity.KindConflict, resp.Error.Kind)
		assert.Equal(t, entity.ErrSlotUnavailable.Message, resp.Error.Message)
	})

	t.Run("plain error is hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, errors.New("pq: connection reset by peer"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := errorBody(t, w)
		assert.Equal(t, entity.CodeInternal, resp.Error.Code)
		assert.Equal(t, entity.ErrInternal.Message, resp.Error.Message)
	})

	t.Run("validation fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, entity.ValidationError(map[string]string{"end_at": "must be after start_at"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := errorBody(t, w)
		assert.Equal(t, "must be after start_at", resp.Error.Fields["end_at"])
	})
}

func TestBindError(t *testing.T) {
	type payload struct {
		Name string `validate:"required"`
	}
	verr := validator.New().Struct(payload{})
	require.Error(t, verr)

	err := bindError(verr)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
	assert.Equal(t, "failed on the 'required' rule", entity.AsAppError(err).Fields["Name"])

	err = bindError(errors.New("unexpected EOF"))
	assert.Equal(t, "unexpected EOF", entity.AsAppError(err).Fields["body"])
}
