package payment

import "errors"

var (
	ErrValidation      = errors.New("datos inválidos")
	ErrNotFound        = errors.New("pago no encontrado")
	ErrStudentNotFound = errors.New("estudiante no encontrado")
	ErrGateway         = errors.New("error con el procesador de pagos")

	// ErrAlreadySettled: o pagamento já foi capturado por outra ordem.
	ErrAlreadySettled = errors.New("el pago ya fue liquidado con otra orden")
	// ErrOrderMismatch: a ordem já foi capturada para outro pagamento.
	ErrOrderMismatch = errors.New("la orden pertenece a otro pago")
)
