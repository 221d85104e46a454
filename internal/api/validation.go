package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"artomate-backend/internal/core"
	"artomate-backend/internal/models"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by the request models.
// It is safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		if err = v.RegisterValidation("captionvariant", validateCaptionVariant); err != nil {
			return
		}
		err = v.RegisterValidation("contenttype", validateContentType)
	})
	return err
}

func validateCaptionVariant(fl validator.FieldLevel) bool {
	v := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	return v == models.CaptionA || v == models.CaptionB
}

func validateContentType(fl validator.FieldLevel) bool {
	return core.IsContentType(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}

// bindingErrorDetails turns validator errors into one readable line.
func bindingErrorDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "captionvariant":
			parts = append(parts, fmt.Sprintf("%s must be A or B", fe.Field()))
		case "contenttype":
			parts = append(parts, fmt.Sprintf("%s must be one of music, video, book", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
