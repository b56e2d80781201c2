package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidState = errors.New("state inválido ou expirado")

// StateClaims amarra o retorno do checkout ao pagamento que criou a ordem.
type StateClaims struct {
	PaymentID uint `json:"pid"`
	jwt.RegisteredClaims
}

// StateSigner gera e valida o parâmetro "state" (HS256) da URL de retorno do PayPal.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner retorna nil quando o segredo está vazio: o state fica desativado.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled informa se o state está ativo; um *StateSigner nil é válido e desativado.
func (s *StateSigner) Enabled() bool { return s != nil }

// GerarState assina o id do pagamento com validade de ttl.
func (s *StateSigner) GerarState(paymentID uint) (string, error) {
	if s == nil {
		return "", nil
	}
	now := s.now()
	claims := &StateClaims{
		PaymentID: paymentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(paymentID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidarState confere assinatura, validade e o pagamento esperado.
func (s *StateSigner) ValidarState(tokenStr string, paymentID uint) error {
	if s == nil {
		return nil
	}
	if tokenStr == "" {
		return fmt.Errorf("%w: ausente", ErrInvalidState)
	}
	claims := &StateClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.PaymentID != paymentID {
		return fmt.Errorf("%w: pagamento divergente", ErrInvalidState)
	}
	return nil
}
