package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GTDGit/apparel_tracker/internal/utils"
)

func init() {
	// Report binding failures with JSON field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// respondError maps service errors to HTTP responses. Unknown errors are
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var (
		validation *utils.ValidationError
		duplicate  *utils.DuplicateKeyError
		bindErrs   validator.ValidationErrors
	)

	switch {
	case errors.As(err, &bindErrs):
		fields := make([]utils.FieldError, 0, len(bindErrs))
		for _, fe := range bindErrs {
			fields = append(fields, utils.FieldError{Field: fieldPath(fe), Message: bindingMessage(fe)})
		}
		utils.ErrorWithFields(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fields)
	case errors.As(err, &validation):
		utils.ErrorWithFields(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", validation.Fields)
	case errors.Is(err, utils.ErrValidation):
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, utils.ErrInsufficientStock):
		utils.Error(c, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.As(err, &duplicate):
		utils.ErrorWithFields(c, http.StatusConflict, "DUPLICATE_KEY", duplicate.Error(),
			[]utils.FieldError{{Field: duplicate.Field, Message: "already exists"}})
	case errors.Is(err, utils.ErrDuplicateKey):
		utils.Error(c, http.StatusConflict, "DUPLICATE_KEY", "Duplicate value")
	case errors.Is(err, utils.ErrInvalidStatusChange):
		utils.Error(c, http.StatusConflict, "INVALID_STATUS_CHANGE", "Only completed sales can be cancelled or refunded")
	case errors.Is(err, utils.ErrInvalidCredentials):
		utils.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, utils.ErrInvalidToken):
		utils.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
	case errors.Is(err, utils.ErrInactiveAccount):
		utils.Error(c, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "Account is inactive")
	case errors.Is(err, utils.ErrForbidden):
		utils.Error(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
	case errors.Is(err, utils.ErrNotFound):
		utils.Error(c, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, utils.ErrStorageDisabled):
		utils.Error(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Image storage is not configured")
	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// bindError answers a request whose body or query could not be bound.
func bindError(c *gin.Context, err error) {
	var bindErrs validator.ValidationErrors
	if errors.As(err, &bindErrs) {
		respondError(c, err)
		return
	}
	utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
}

// fieldPath drops the request struct name from the namespace, so
// "CreateSaleRequest.items[0].quantity" becomes "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

// objectIDParam parses the :id path parameter.
func objectIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter; invalid values are 0.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
