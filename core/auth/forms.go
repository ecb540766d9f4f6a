package auth

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vims/core"
)

type LoginForm struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
	From     string `form:"from" json:"-"`
}

func (f *LoginForm) Validate(validate *validator.Validate) error {
	f.Email = core.CleanString(f.Email, true)
	return validate.Struct(f)
}

type ActivationForm struct {
	UID             string `form:"uid" json:"-" validate:"required"`
	Token           string `form:"token" json:"-" validate:"required"`
	Password        string `form:"password" json:"password" validate:"required,pwdminlen,pwdnospace,pwdnotallnum"`
	ConfirmPassword string `form:"confirm_password" json:"-" validate:"required,eqfield=Password"`
}

func (f *ActivationForm) Validate(validate *validator.Validate) error {
	f.UID = core.CleanString(f.UID)
	f.Token = core.CleanString(f.Token)
	return validate.Struct(f)
}
