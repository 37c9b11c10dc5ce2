package domain

import "fmt"

// OutOfToleranceError señala un parámetro numérico fuera de tolerancia
// (hoy, únicamente `limit` negativo antes del clamp). Es un error tipado y
// no una excepción de control de flujo: su 400 necesita el nombre del
// parámetro atravesando todo el pipeline.
type OutOfToleranceError struct {
	Param string
}

func (e *OutOfToleranceError) Error() string {
	return fmt.Sprintf("Parameter %s out of tolerance", e.Param)
}

// ValidationError transporta un mensaje de validación compatible byte a
// byte con el sistema legado ("Bad or absent date field", etc.).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
