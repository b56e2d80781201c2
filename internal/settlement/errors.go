package settlement

import "errors"

var (
	ErrConfigInvalid   = errors.New("paypal: configuração inválida")
	ErrAuthFailed      = errors.New("paypal: falha na autenticação")
	ErrRequestFailed   = errors.New("paypal: falha na requisição")
	ErrResponseInvalid = errors.New("paypal: resposta inválida")
)
