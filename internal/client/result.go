package client

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"solconta/internal/models"
)

// OpResult is the outcome of a user operation. Every failure is folded into
// a displayable message, so callers only ever show Error.
type OpResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Ok is a successful result.
func Ok() OpResult {
	return OpResult{Success: true}
}

// Fail folds err into a failed result with a Spanish message.
func Fail(err error) OpResult {
	var validation *models.ValidationError
	var apiErr *APIError
	var urlErr *url.Error

	switch {
	case err == nil:
		return Ok()
	case errors.As(err, &validation):
		return OpResult{Error: validation.Message}
	case errors.Is(err, ErrNoSession):
		return OpResult{Error: msgSessionExpired}
	case errors.As(err, &apiErr):
		return OpResult{Error: Translate(apiErr.Message)}
	case errors.As(err, &urlErr):
		return OpResult{Error: "No se pudo conectar con el servidor."}
	default:
		return OpResult{Error: err.Error()}
	}
}

const msgSessionExpired = "Tu sesión expiró, vuelve a iniciar sesión."

type translation struct {
	contains string
	message  string
}

// translations are matched in order against the API message.
var translations = []translation{
	{"Invalid login credentials", "Correo o contraseña incorrectos."},
	{"Email not confirmed", "Debes confirmar tu correo antes de iniciar sesión."},
	{"User already registered", "Este correo ya está registrado."},
	{"same password", "La nueva contraseña no puede ser igual a la anterior."},
	{"Password should be at least", "La contraseña debe tener al menos 6 caracteres."},
	{"Unable to validate email address", "El correo electrónico no es válido."},
	{"Token has expired or is invalid", "El enlace expiró o no es válido."},
	{"Unsupported provider", "Este método de inicio de sesión no está habilitado."},
	{"OAuth sign-in failed", "No se pudo iniciar sesión con el proveedor."},
	{"Authentication required", msgSessionExpired},
	{"A category with this name already exists", "Ya existe una categoría con ese nombre."},
	{"Category type does not match", "La categoría no corresponde al tipo de movimiento."},
	{"Category not found", "La categoría no existe."},
	{"Transaction not found", "El movimiento no existe."},
}

var retryAfter = regexp.MustCompile(`after (\d+) seconds?`)

// Translate maps an API error message to Spanish. Unknown messages are
// returned unchanged.
func Translate(message string) string {
	if m := retryAfter.FindStringSubmatch(message); m != nil {
		return fmt.Sprintf("Por seguridad, espera %s segundos antes de volver a intentarlo.", m[1])
	}
	for _, t := range translations {
		if strings.Contains(message, t.contains) {
			return t.message
		}
	}
	return message
}
