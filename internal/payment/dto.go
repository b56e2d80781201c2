package payment

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/KromaEnergia/api-pagos/internal/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

/* ============================== PatchField ============================== */

// PatchField distingue campo ausente (Present == false) de null explícito
// (Present == true && Value == nil).
type PatchField[T any] struct {
	Present bool
	Value   *T
}

func (p *PatchField[T]) UnmarshalJSON(b []byte) error {
	p.Present = true
	if string(bytes.TrimSpace(b)) == "null" {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

func (p PatchField[T]) Get() (*T, bool) { return p.Value, p.Present }

// IsNull informa null explícito.
func (p PatchField[T]) IsNull() bool { return p.Present && p.Value == nil }

/* ============================== Requests ============================== */

// POST /api/payments
type CreateRequest struct {
	StudentID     *uint            `json:"studentId" validate:"required"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Concept       string           `json:"concept" validate:"required"`
	DueDate       string           `json:"dueDate" validate:"required"`
	PaidDate      *string          `json:"paidDate"`
	Status        string           `json:"status"` // vazio => DefaultStatus
	InvoiceNumber *string          `json:"invoiceNumber"`
	Grade         *string          `json:"grade"`
}

// normalize remove espaços antes da validação; concept "   " conta como ausente.
func (r *CreateRequest) normalize() {
	r.Concept = strings.TrimSpace(r.Concept)
	r.DueDate = strings.TrimSpace(r.DueDate)
	r.Status = strings.TrimSpace(r.Status)
	r.InvoiceNumber = trimPtr(r.InvoiceNumber)
	r.Grade = trimPtr(r.Grade)
}

// PUT /api/payments/{id}: apenas os campos presentes alteram o registro.
type UpdateRequest struct {
	StudentID     PatchField[uint]            `json:"studentId"`
	Amount        PatchField[decimal.Decimal] `json:"amount"`
	Concept       PatchField[string]          `json:"concept"`
	DueDate       PatchField[string]          `json:"dueDate"`
	PaidDate      PatchField[string]          `json:"paidDate"`
	Status        PatchField[string]          `json:"status"`
	InvoiceNumber PatchField[string]          `json:"invoiceNumber"`
	Grade         PatchField[string]          `json:"grade"`
}

// status retorna o status informado; null ou em branco contam como ausente.
func (r UpdateRequest) status() (Status, bool) {
	v, ok := r.Status.Get()
	if !ok || v == nil || strings.TrimSpace(*v) == "" {
		return "", false
	}
	return NormalizeStatus(*v), true
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// applyPtr aplica um PatchField de texto opcional: null ou vazio limpam o campo.
func applyPtr(dst **string, f PatchField[string]) {
	v, ok := f.Get()
	if !ok {
		return
	}
	*dst = trimPtr(v)
}

/* ============================== Views ============================== */

// PaymentView é a projeção pública de um pagamento.
type PaymentView struct {
	ID            uint    `json:"id"`
	StudentID     uint    `json:"studentId"`
	StudentName   string  `json:"studentName"`
	Grade         *string `json:"grade"`
	Concept       string  `json:"concept"`
	Amount        float64 `json:"amount"`
	DueDate       string  `json:"dueDate"`
	PaidDate      *string `json:"paidDate"`
	Status        string  `json:"status"`
	StatusCode    Status  `json:"statusCode"`
	InvoiceNumber *string `json:"invoiceNumber"`
	TransactionID *string `json:"transactionId"`
}

// ToView monta a view com o rótulo de status no idioma pedido.
// Sem aluno carregado, o nome sai "N/A" e o grau vem do próprio pagamento.
func ToView(p Payment, lang language.Tag) PaymentView {
	v := PaymentView{
		ID:            p.ID,
		StudentID:     p.StudentID,
		StudentName:   "N/A",
		Grade:         p.Grade,
		Concept:       p.Concept,
		Amount:        p.Amount.InexactFloat64(),
		DueDate:       utils.FormatDate(p.DueDate),
		PaidDate:      utils.FormatDatePtr(p.PaidDate),
		Status:        p.Status.Label(lang),
		StatusCode:    p.Status,
		InvoiceNumber: p.InvoiceNumber,
		TransactionID: p.TransactionID,
	}
	if p.Student != nil {
		v.StudentName = p.Student.Name
		if g := strings.TrimSpace(p.Student.Grade); g != "" {
			v.Grade = &g
		}
	}
	return v
}

func ToViews(ps []Payment, lang language.Tag) []PaymentView {
	out := make([]PaymentView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToView(p, lang))
	}
	return out
}

// CheckoutOrder é a resposta de POST /{id}/paypal-order.
type CheckoutOrder struct {
	ApprovalURL string `json:"approvalUrl"`
	OrderID     string `json:"orderId"`
}

// CaptureOutcome descreve o resultado de uma captura.
// Inconclusive == true quando o processador respondeu sem id de transação.
type CaptureOutcome struct {
	PaymentID     uint
	TransactionID string
	Inconclusive  bool
	Replayed      bool
}
