package behavior

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	behaviorTypeTag  = "behaviortype"
	behaviorTypeText = "{0} must be one of note, praise, warning, punishment"
)

// RegisterValidators adds the behavior rules to validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(behaviorTypeTag, behaviorTypeValidation)
	core.RegisterCustomTranslation(validate, translator, behaviorTypeTag, behaviorTypeText)
}

func behaviorTypeValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Type:
		return v.Valid()
	case string:
		return Type(v).Valid()
	}
	return false
}
