package knowledge

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hyperjump/syntra/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Use JSON tag names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("nodetype", func(fl validator.FieldLevel) bool {
			return models.NodeType(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// ValidateInput normalizes in (type case, surrounding whitespace of title, content and tags)
// and checks it. Failures wrap models.ErrValidation.
func ValidateInput(in *models.NodeInput) error {
	in.Type = models.NodeType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Source = strings.TrimSpace(in.Source)
	// Tags may share a backing array with the caller's slice.
	in.Tags = slices.Clone(in.Tags)
	for i := range in.Tags {
		in.Tags[i] = strings.TrimSpace(in.Tags[i])
	}

	if err := getValidator().Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, formatFieldError(fe))
		}
		return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(msgs, "; "))
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "nodetype":
		return fmt.Sprintf("%s must be one of: book, note, article, quote, idea", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
