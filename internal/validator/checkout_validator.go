package validator

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"storefront/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")

	// 配送先の国が対象外
	ErrUnsupportedCountry = errors.New("unsupported shipping country")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// バッグのチェックアウト入力を検証（空のemail・国は許可）
func ValidateCheckout(email string, country string) error {
	email = strings.TrimSpace(email)
	if email != "" && !isEmailLike(email) {
		return ErrInvalidInput
	}
	if len(email) > 254 {
		return ErrInvalidInput
	}

	country = strings.ToUpper(strings.TrimSpace(country))
	if country != "" && !slices.Contains(usecase.AllowedShippingCountries, country) {
		return ErrUnsupportedCountry
	}
	return nil
}

// 追加リクエストの数量（0は1扱い、負数と上限超えの明らかな誤りは弾く）
func ValidateQuantity(q int) error {
	if q < 0 || q > 99 {
		return ErrInvalidInput
	}
	return nil
}

func isEmailLike(s string) bool {
	return emailRe.MatchString(s)
}
