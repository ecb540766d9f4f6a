package auth

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vims/core"
)

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

func fieldErrors(t *testing.T, err error, translator ut.Translator) map[string]string {
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	out := make(map[string]string, len(vErrs))
	for _, e := range vErrs {
		out[e.Field()] = e.Translate(translator)
	}
	return out
}

func TestLoginForm_Validate(t *testing.T) {
	validate, translator := newValidator()

	f := LoginForm{Email: "  Jane@Example.COM ", Password: "secret"}
	require.NoError(t, f.Validate(validate))
	assert.Equal(t, "jane@example.com", f.Email)

	f = LoginForm{Email: "nope"}
	assert.Equal(t, map[string]string{
		"email":    "enter a valid email address",
		"password": "this field is required",
	}, fieldErrors(t, f.Validate(validate), translator))
}

func TestActivationForm_Validate(t *testing.T) {
	validate, translator := newValidator()

	tests := []struct {
		name string
		form ActivationForm
		want map[string]string
	}{
		{name: "valid", form: ActivationForm{UID: "MQ", Token: "abc", Password: "s3cret-pass", ConfirmPassword: "s3cret-pass"}},
		{name: "missing", form: ActivationForm{}, want: map[string]string{
			"uid": "this field is required", "token": "this field is required",
			"password": "this field is required", "confirm_password": "this field is required",
		}},
		{name: "too short", form: ActivationForm{UID: "MQ", Token: "abc", Password: "abc", ConfirmPassword: "abc"},
			want: map[string]string{"password": "password must contain at least 8 characters"}},
		{name: "whitespace", form: ActivationForm{UID: "MQ", Token: "abc", Password: "abc defgh", ConfirmPassword: "abc defgh"},
			want: map[string]string{"password": "password must not contain whitespace"}},
		{name: "numeric", form: ActivationForm{UID: "MQ", Token: "abc", Password: "12345678", ConfirmPassword: "12345678"},
			want: map[string]string{"password": "password cannot be entirely numeric"}},
		{name: "mismatch", form: ActivationForm{UID: "MQ", Token: "abc", Password: "s3cret-pass", ConfirmPassword: "other-pass"},
			want: map[string]string{"confirm_password": "the two password fields didn't match"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate(validate)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, fieldErrors(t, err, translator))
		})
	}
}
