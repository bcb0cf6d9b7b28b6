package v1

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"dasa-hub/internal/api/response"
	"dasa-hub/internal/service"
)

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validator report json names ("start_time")
// instead of Go field names so binding and service errors share keys.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
}

// bindJSON decodes the body and writes the 400 itself when it fails.
func bindJSON(c *gin.Context, req any) bool {
	useJSONFieldNames()

	if err := c.ShouldBindJSON(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidationError(c, fromValidator(verrs))
			return false
		}
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return false
	}
	return true
}

func fromValidator(verrs validator.ValidationErrors) *service.ValidationError {
	out := &service.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), describeTag(fe))
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid [" + fe.Tag() + "]"
	}
}

func writeValidationError(c *gin.Context, verr *service.ValidationError) {
	response.FailWithData(c, http.StatusBadRequest, response.ErrValidation, verr.Error(), gin.H{"fields": verr.Fields})
}

// handleServiceError maps service sentinels onto the response envelope.
func handleServiceError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(c, verr)
	case errors.Is(err, service.ErrAnnouncementNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAnnouncementNotFound, "announcement not found")
	case errors.Is(err, service.ErrEventNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrEventNotFound, "event not found")
	case errors.Is(err, service.ErrLostItemNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrLostItemNotFound, "lost item not found")
	case errors.Is(err, service.ErrUnauthenticated):
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidAuditInput):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "internal error")
	}
}

func queryBool(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
