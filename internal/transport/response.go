package transport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorBody is the machine readable part of an error response.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Kind    entity.ErrorKind  `json:"kind"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse wraps a failure.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

func statusFor(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindConflict:
		return http.StatusConflict
	case entity.KindBusiness:
		return http.StatusUnprocessableEntity
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindTransient:
		return http.StatusServiceUnavailable
	case entity.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	appErr := entity.AsAppError(err)
	status := statusFor(appErr.Kind)

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}

	message := appErr.Message
	if appErr.Kind == entity.KindInternal {
		message = entity.ErrInternal.Message
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error: ErrorBody{
			Code:    appErr.Code,
			Message: message,
			Kind:    appErr.Kind,
			Fields:  appErr.Fields,
		},
	})
}

// bindError turns a gin binding failure into a validation error with one
// entry per offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on the '" + fe.Tag() + "' rule"
		}
		return entity.ValidationError(fields)
	}
	return entity.ValidationError(map[string]string{"body": err.Error()})
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, entity.ValidationError(map[string]string{name: "must be an RFC 3339 timestamp"})
	}
	return &t, nil
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, entity.ValidationError(map[string]string{"limit": "must be a non-negative integer"})
	}
	return n, nil
}
