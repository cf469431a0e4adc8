// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// groupLabelRegex matches owner labels of Telegram groups.
var groupLabelRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("snowflake", validateSnowflake)
		_ = v.RegisterValidation("group_label", validateGroupLabel)
	}
}

// validateSnowflake accepts positive Discord/Telegram ids, either as
// integers or as decimal strings.
func validateSnowflake(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return field.Int() > 0
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return field.Uint() > 0
	case reflect.String:
		id, err := strconv.ParseInt(field.String(), 10, 64)
		return err == nil && id > 0
	}
	return false
}

func validateGroupLabel(fl validator.FieldLevel) bool {
	return groupLabelRegex.MatchString(fl.Field().String())
}
