package dto

import (
	"net/url"

	"github.com/Kdero/trustx/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("deposit_amount", validateDepositAmount)
		_ = v.RegisterValidation("safe_url", validateSafeURL)
	}
}

// validateDepositAmount accepts a positive decimal string with at most six
// fractional digits, the precision the chain can actually represent.
func validateDepositAmount(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	if !d.IsPositive() {
		return false
	}
	return d.Exponent() >= -domain.USDTDecimals
}

// validateSafeURL accepts only http/https URLs.
func validateSafeURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true // optional field; use "required" tag to enforce presence
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
