package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	emailTag  = "email"
	emailText = "enter a valid email address"

	eqFieldTag  = "eqfield"
	eqFieldText = "the two password fields didn't match"

	// password policy
	PwdMinLen     = 8
	PwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", PwdMinLen)

	PwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	PwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use form (then JSON) tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("form")
		if tag == "" {
			tag = fld.Tag.Get("json")
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, emailTag, emailText, true)
	RegisterCustomTranslation(validate, translator, eqFieldTag, eqFieldText, true)

	// password policy
	_ = validate.RegisterValidation(PwdMinLenTag, pwdMinLenValidation)
	RegisterCustomTranslation(validate, translator, PwdMinLenTag, pwdMinLenText)
	_ = validate.RegisterValidation(PwdNoSpaceTag, pwdNoSpaceValidation)
	RegisterCustomTranslation(validate, translator, PwdNoSpaceTag, pwdNoSpaceText)
	_ = validate.RegisterValidation(PwdNotAllNumTag, pwdNotAllNumValidation)
	RegisterCustomTranslation(validate, translator, PwdNotAllNumTag, pwdNotAllNumText)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// pwdMinLenValidation requires at least PwdMinLen characters.
func pwdMinLenValidation(fl validator.FieldLevel) bool {
	return len([]rune(fl.Field().String())) >= PwdMinLen
}

// pwdNoSpaceValidation rejects passwords containing whitespace.
func pwdNoSpaceValidation(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
}

// pwdNotAllNumValidation rejects entirely numeric passwords.
func pwdNotAllNumValidation(fl validator.FieldLevel) bool {
	pwd := fl.Field().String()
	return pwd == "" || strings.IndexFunc(pwd, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}
