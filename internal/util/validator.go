package util

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
)

const passwordSpecials = "!@#$%^&?"

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// NormalizeEmail padroniza e-mail para buscas pelo índice.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	if len(password) > 30 {
		return errors.New("senha deve ter no máximo 30 caracteres")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper:
		return errors.New("senha deve conter letra maiúscula")
	case !lower:
		return errors.New("senha deve conter letra minúscula")
	case !digit:
		return errors.New("senha deve conter dígito")
	case !special:
		return errors.New("senha deve conter um símbolo: " + passwordSpecials)
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}
