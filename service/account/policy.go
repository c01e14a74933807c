package account

import (
	"regexp"
	"strings"

	"github.com/alpacahq/gofolio/gberrors"
	validation "github.com/go-ozzo/ozzo-validation"
)

// PasswordSymbols are the characters that satisfy the symbol
// requirement of the password policy.
const PasswordSymbols = "~`!@#$%^&*()_-+=[]:;,.?"

var (
	hasDigit  = regexp.MustCompile(`[0-9]`)
	hasSymbol = regexp.MustCompile(symbolClass(PasswordSymbols))
)

// symbolClass escapes every character so "-" and "]" stay
// literal inside the class.
func symbolClass(symbols string) string {
	var b strings.Builder
	b.WriteString("[")
	for _, r := range symbols {
		b.WriteString(`\`)
		b.WriteRune(r)
	}
	b.WriteString("]")
	return b.String()
}

// CheckPassword applies the password policy, reporting the
// first broken rule as a ValidationError.
func CheckPassword(password, confirmation string) error {
	err := validation.Validate(
		password,
		validation.Required.Error("must provide password"),
		validation.Length(6, 0).Error("password must be at least 6 characters"),
		validation.Match(hasDigit).Error("password must have at least 1 number"),
		validation.Match(hasSymbol).Error("password must have at least 1 symbol"),
	)
	if err != nil {
		return gberrors.ValidationError.WithMsg(err.Error())
	}

	err = validation.Validate(
		confirmation,
		validation.Required.Error("must confirm password"),
		validation.In(password).Error("passwords do not match"),
	)
	if err != nil {
		return gberrors.ValidationError.WithMsg(err.Error())
	}

	return nil
}
