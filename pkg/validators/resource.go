package validators

import (
	"bitwise74/course-archive/internal/model"
	"errors"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var ErrTypeMissing = errors.New("resource type missing")

const maxCourseIDSize = 32

// CourseID upper-cases and trims a course code, "cs f111 " -> "CS F111"
func CourseID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ResourceType resolves the type picked in the form. Picking "Other" (or
// leaving the type empty) requires the free text in other.
func ResourceType(typ, other string) (string, error) {
	typ = strings.TrimSpace(typ)
	if typ != "" && typ != model.TypeOther {
		return typ, nil
	}

	other = strings.TrimSpace(other)
	if other == "" {
		return "", ErrTypeMissing
	}

	return other, nil
}

func courseCode(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s != "" && len(s) <= maxCourseIDSize && !strings.ContainsAny(s, "/\\")
}

// RegisterBindings adds the custom tags used in request bodies to gin's validator
func RegisterBindings() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}

	return v.RegisterValidation("coursecode", courseCode)
}
