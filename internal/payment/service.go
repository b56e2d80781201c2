package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/KromaEnergia/api-pagos/internal/settlement"
	"github.com/KromaEnergia/api-pagos/internal/student"
	"github.com/KromaEnergia/api-pagos/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/* ============================== Dependências ============================== */

// Directory resolve o aluno dono do pagamento.
type Directory interface {
	FindByID(ctx context.Context, id uint) (*student.Student, error)
}

// Gateway é o processador de pagamentos (PayPal).
type Gateway interface {
	CreateOrder(ctx context.Context, in settlement.OrderInput) (*settlement.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*settlement.CaptureResult, error)
}

// EventLog guarda as respostas do processador e as capturas por ordem.
type EventLog interface {
	Record(ctx context.Context, e *settlement.Event) error
	FindCapture(ctx context.Context, orderID string) (*settlement.Event, error)
	ClearReconciliation(ctx context.Context, orderID string) error
}

// StateSigner assina o "state" da URL de retorno do checkout.
type StateSigner interface {
	GerarState(paymentID uint) (string, error)
	ValidarState(state string, paymentID uint) error
}

// CheckoutURLs: CaptureURL aceita o marcador {id}.
type CheckoutURLs struct {
	CaptureURL string
	CancelURL  string
	SuccessURL string
}

type Deps struct {
	Store     Store
	Directory Directory
	Gateway   Gateway
	Events    EventLog
	State     StateSigner
	Checkout  CheckoutURLs
	Logger    *zap.Logger
	Now       func() time.Time
	Location  *time.Location
}

// Service concentra o ciclo de vida do pagamento e a conciliação com o processador.
type Service struct {
	store     Store
	directory Directory
	gateway   Gateway
	events    EventLog
	state     StateSigner
	checkout  CheckoutURLs
	log       *zap.Logger
	now       func() time.Time
	loc       *time.Location
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		directory: d.Directory,
		gateway:   d.Gateway,
		events:    d.Events,
		state:     d.State,
		checkout:  d.Checkout,
		log:       d.Logger,
		now:       d.Now,
		loc:       d.Location,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

func (s *Service) today() time.Time {
	return utils.Today(s.now().In(s.loc))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fe.Field())
		}
		return fmt.Errorf("%w: campos obligatorios: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func (s *Service) resolveStudent(ctx context.Context, id uint) (*student.Student, error) {
	st, err := s.directory.FindByID(ctx, id)
	if errors.Is(err, student.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrStudentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

/* ============================== CRUD ============================== */

// Create valida e grava um novo pagamento. Status vazio assume DefaultStatus;
// PAID sem data de pagamento válida recebe a data de hoje.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Payment, error) {
	req.normalize()
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount debe ser mayor o igual a 0", ErrValidation)
	}
	due, ok := utils.ParseDate(req.DueDate)
	if !ok {
		return nil, fmt.Errorf("%w: dueDate inválida", ErrValidation)
	}
	st, err := s.resolveStudent(ctx, *req.StudentID)
	if err != nil {
		return nil, err
	}

	status := DefaultStatus
	if req.Status != "" {
		status = NormalizeStatus(req.Status)
	}

	p := &Payment{
		StudentID:     *req.StudentID,
		Student:       st,
		Amount:        req.Amount.Round(2),
		Concept:       req.Concept,
		DueDate:       due,
		Status:        status,
		InvoiceNumber: req.InvoiceNumber,
		Grade:         req.Grade,
	}
	if status.IsPaid() {
		p.PaidDate = utils.ParseDatePtr(req.PaidDate)
	}
	p.reconcilePaidDate(s.today())
	s.warnUnknownStatus(p)

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("pagamento criado", zap.Uint("payment_id", p.ID), zap.Uint("student_id", p.StudentID), zap.String("status", string(p.Status)))
	return p, nil
}

// Update aplica apenas os campos presentes. Nada é gravado se alguma regra falhar.
func (s *Service) Update(ctx context.Context, id uint, req UpdateRequest) (*Payment, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.StudentID.IsNull() || req.Amount.IsNull() || req.Concept.IsNull() || req.DueDate.IsNull() {
		return nil, fmt.Errorf("%w: studentId, amount, concept y dueDate no pueden ser nulos", ErrValidation)
	}

	var concept *string
	if v, ok := req.Concept.Get(); ok {
		c := strings.TrimSpace(*v)
		if c == "" {
			return nil, fmt.Errorf("%w: concept vacío", ErrValidation)
		}
		concept = &c
	}
	if v, ok := req.Amount.Get(); ok && v.IsNegative() {
		return nil, fmt.Errorf("%w: amount debe ser mayor o igual a 0", ErrValidation)
	}
	if v, ok := req.StudentID.Get(); ok && *v != p.StudentID {
		st, err := s.resolveStudent(ctx, *v)
		if err != nil {
			return nil, err
		}
		p.StudentID = st.ID
		p.Student = st
	}

	if concept != nil {
		p.Concept = *concept
	}
	if v, ok := req.Amount.Get(); ok {
		p.Amount = v.Round(2)
	}
	if v, ok := req.DueDate.Get(); ok {
		if due, ok := utils.ParseDate(*v); ok {
			p.DueDate = due
		}
	}
	applyPtr(&p.InvoiceNumber, req.InvoiceNumber)
	applyPtr(&p.Grade, req.Grade)

	if st, ok := req.status(); ok {
		p.Status = st
	}
	// Data informada só vale para pagamento PAID (com ou sem status no request).
	if v, ok := req.PaidDate.Get(); ok && v != nil && p.Status.IsPaid() {
		if d := utils.ParseDatePtr(v); d != nil {
			p.PaidDate = d
		}
	}
	p.reconcilePaidDate(s.today())
	s.warnUnknownStatus(p)

	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete é idempotente.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uint) (*Payment, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Payment, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) ListByOwner(ctx context.Context, studentID uint) ([]Payment, error) {
	return s.store.ListByOwner(ctx, studentID)
}

// MarkPaid marca como PAID sem passar pelo processador; o id de transação não muda.
func (s *Service) MarkPaid(ctx context.Context, id uint) (*Payment, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = StatusPaid
	p.reconcilePaidDate(s.today())
	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("pagamento marcado como pago", zap.Uint("payment_id", p.ID))
	return p, nil
}

// Summary resume os pendentes de um aluno.
func (s *Service) Summary(ctx context.Context, studentID uint) (Summary, error) {
	records, err := s.store.ListByOwner(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records, s.today()), nil
}

func (s *Service) warnUnknownStatus(p *Payment) {
	if !p.Status.Known() {
		s.log.Warn("status não reconhecido gravado como recebido", zap.Uint("payment_id", p.ID), zap.String("status", string(p.Status)))
	}
}

/* ============================== Liquidação ============================== */

func (s *Service) gatewayOrErr() (Gateway, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, settlement.ErrConfigInvalid)
	}
	return s.gateway, nil
}

// CreateSettlementOrder cria a ordem no processador e devolve o link de aprovação.
// O pagamento não é alterado.
func (s *Service) CreateSettlementOrder(ctx context.Context, id uint) (*CheckoutOrder, error) {
	gw, err := s.gatewayOrErr()
	if err != nil {
		return nil, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsPaid() && p.TransactionID != nil && *p.TransactionID != "" {
		return nil, fmt.Errorf("%w: transacción %s", ErrAlreadySettled, *p.TransactionID)
	}

	returnURL, err := s.returnURL(p.ID)
	if err != nil {
		return nil, err
	}
	order, err := gw.CreateOrder(ctx, settlement.OrderInput{
		Amount:      p.Amount,
		Description: p.Concept,
		ReturnURL:   returnURL,
		CancelURL:   s.checkout.CancelURL,
		RequestID:   uuid.NewString(),
	})
	if err != nil {
		s.log.Error("falha ao criar ordem", zap.Uint("payment_id", p.ID), zap.Error(err))
		s.record(ctx, &settlement.Event{
			PaymentID: p.ID,
			Kind:      settlement.KindOrderCreated,
			Status:    settlement.EventFailed,
			Error:     err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	s.record(ctx, &settlement.Event{
		PaymentID: p.ID,
		Kind:      settlement.KindOrderCreated,
		OrderID:   order.ID,
		Status:    settlement.EventSuccess,
		Payload:   settlement.PayloadJSON(order.Raw),
	})
	return &CheckoutOrder{ApprovalURL: order.ApprovalURL, OrderID: order.ID}, nil
}

// CaptureSettlement captura a ordem aprovada e liquida o pagamento.
//
// A captura é indexada pelo id da ordem: repetir uma ordem já capturada devolve a
// transação gravada sem chamar o processador. Resposta sem id de transação fica
// registrada para conciliação e o pagamento não muda.
func (s *Service) CaptureSettlement(ctx context.Context, id uint, orderID, state string) (*CaptureOutcome, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: token (order id) ausente", ErrValidation)
	}
	gw, err := s.gatewayOrErr()
	if err != nil {
		return nil, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.state != nil {
		if err := s.state.ValidarState(state, id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	if s.events != nil {
		prev, err := s.events.FindCapture(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			if prev.PaymentID != id {
				return nil, fmt.Errorf("%w: orden %s capturada para el pago %d", ErrOrderMismatch, orderID, prev.PaymentID)
			}
			tx := ""
			if prev.TransactionID != nil {
				tx = *prev.TransactionID
			}
			return &CaptureOutcome{PaymentID: id, TransactionID: tx, Replayed: true}, nil
		}
	}
	if p.Status.IsPaid() && p.TransactionID != nil && *p.TransactionID != "" {
		return nil, fmt.Errorf("%w: transacción %s", ErrAlreadySettled, *p.TransactionID)
	}

	res, err := gw.CaptureOrder(ctx, orderID)
	if err != nil {
		s.log.Error("falha na captura", zap.Uint("payment_id", id), zap.String("order_id", orderID), zap.Error(err))
		s.record(ctx, &settlement.Event{
			PaymentID: id,
			Kind:      settlement.KindCapture,
			OrderID:   orderID,
			Status:    settlement.EventFailed,
			Error:     err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	if res.Inconclusive() {
		s.log.Warn("captura inconclusiva, pagamento mantido para conciliação", zap.Uint("payment_id", id), zap.String("order_id", orderID))
		s.record(ctx, &settlement.Event{
			PaymentID:           id,
			Kind:                settlement.KindCapture,
			OrderID:             orderID,
			Status:              settlement.EventInconclusive,
			Payload:             settlement.PayloadJSON(res.Raw),
			NeedsReconciliation: true,
		})
		return &CaptureOutcome{PaymentID: id, Inconclusive: true}, nil
	}

	today := s.today()
	tx := res.TransactionID
	p.TransactionID = &tx
	p.Status = StatusPaid
	p.PaidDate = &today
	p.reconcilePaidDate(today)

	if err := s.store.Save(ctx, p); err != nil {
		// O processador já capturou: sem CaptureKey, a próxima tentativa volta ao
		// processador, que deduplica pelo PayPal-Request-Id.
		s.log.Error("captura confirmada mas pagamento não foi gravado", zap.Uint("payment_id", id), zap.String("order_id", orderID), zap.String("transaction_id", tx), zap.Error(err))
		s.record(ctx, &settlement.Event{
			PaymentID:           id,
			Kind:                settlement.KindCapture,
			OrderID:             orderID,
			Status:              settlement.EventSuccess,
			TransactionID:       &tx,
			Payload:             settlement.PayloadJSON(res.Raw),
			Error:               err.Error(),
			NeedsReconciliation: true,
		})
		return nil, err
	}

	key := settlement.CaptureKey(orderID)
	s.record(ctx, &settlement.Event{
		PaymentID:     id,
		Kind:          settlement.KindCapture,
		OrderID:       orderID,
		CaptureKey:    &key,
		Status:        settlement.EventSuccess,
		TransactionID: &tx,
		Payload:       settlement.PayloadJSON(res.Raw),
	})
	s.clearReconciliation(ctx, id, orderID)
	s.log.Info("pagamento liquidado", zap.Uint("payment_id", id), zap.String("order_id", orderID), zap.String("transaction_id", tx))
	return &CaptureOutcome{PaymentID: id, TransactionID: tx}, nil
}

// record nunca interrompe o fluxo do pagador; falhas vão só para o log.
func (s *Service) record(ctx context.Context, e *settlement.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, e); err != nil {
		s.log.Error("falha ao registrar evento de liquidação",
			zap.Uint("payment_id", e.PaymentID),
			zap.String("order_id", e.OrderID),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}

// clearReconciliation tira da fila as tentativas anteriores da mesma ordem
// (inconclusivas ou sem gravação local), já que o pagamento foi liquidado.
func (s *Service) clearReconciliation(ctx context.Context, id uint, orderID string) {
	if s.events == nil {
		return
	}
	if err := s.events.ClearReconciliation(ctx, orderID); err != nil {
		s.log.Error("falha ao baixar conciliação da ordem",
			zap.Uint("payment_id", id),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *Service) returnURL(id uint) (string, error) {
	raw := strings.ReplaceAll(s.checkout.CaptureURL, "{id}", strconv.FormatUint(uint64(id), 10))
	if s.state == nil {
		return raw, nil
	}
	state, err := s.state.GerarState(id)
	if err != nil {
		return "", err
	}
	if state == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("url de retorno inválida: %w", err)
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SuccessRedirect monta a URL da página de sucesso; transactionId vai vazio
// quando a captura foi inconclusiva.
func (s *Service) SuccessRedirect(o *CaptureOutcome) string {
	q := url.Values{}
	q.Set("paymentId", strconv.FormatUint(uint64(o.PaymentID), 10))
	q.Set("transactionId", o.TransactionID)

	u, err := url.Parse(s.checkout.SuccessURL)
	if err != nil {
		return s.checkout.SuccessURL + "?" + q.Encode()
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
