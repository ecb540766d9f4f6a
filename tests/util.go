package testutil

import (
	"io"
	"log"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/services/logger"
)

// NewValidator returns a validator set up like the server's.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a logger that reports nothing.
func NewLogger(t *testing.T) core.Logger {
	t.Helper()
	conf := &core.Config{Env: "test", TestMode: true}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
	logger.Enable(false)
	return logger
}
