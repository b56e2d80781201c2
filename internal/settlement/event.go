package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventKind string

const (
	KindOrderCreated EventKind = "order_created"
	KindCapture      EventKind = "capture"
)

type EventStatus string

const (
	EventSuccess      EventStatus = "success"
	EventFailed       EventStatus = "failed"
	EventInconclusive EventStatus = "inconclusive"
)

// Event registra cada chamada ao processador com a resposta bruta.
// Capturas bem-sucedidas carregam CaptureKey único ("capture:<orderId>").
type Event struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID           uint           `gorm:"not null;index" json:"paymentId"`
	Kind                EventKind      `gorm:"size:30;not null" json:"kind"`
	OrderID             string         `gorm:"size:100;index" json:"orderId"`
	CaptureKey          *string        `gorm:"size:120;uniqueIndex" json:"-"`
	Status              EventStatus    `gorm:"size:20;not null" json:"status"`
	TransactionID       *string        `gorm:"size:100" json:"transactionId"`
	Payload             datatypes.JSON `json:"payload"`
	Error               string         `gorm:"type:text" json:"error,omitempty"`
	NeedsReconciliation bool           `gorm:"not null;default:false;index" json:"needsReconciliation"`
	CreatedAt           time.Time      `json:"createdAt"`
}

func (Event) TableName() string { return "settlement_events" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CaptureKey é a chave de idempotência da captura de uma ordem.
func CaptureKey(orderID string) string { return "capture:" + orderID }

// PayloadJSON converte a resposta bruta em JSON válido; texto que não é JSON
// vira uma string JSON sem escapar <, > e &.
func PayloadJSON(raw []byte) datatypes.JSON {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(string(raw))
	return datatypes.JSON(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Migrate cria a tabela no banco de dados.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Event{})
}

/* ============================== Repository ============================== */

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

// Record grava o evento. Uma segunda captura com a mesma CaptureKey é ignorada.
func (r *EventRepository) Record(ctx context.Context, e *Event) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "capture_key"}}, DoNothing: true}).
		Create(e).Error
}

// FindCapture retorna a captura bem-sucedida da ordem, ou nil se não houver.
func (r *EventRepository) FindCapture(ctx context.Context, orderID string) (*Event, error) {
	var e Event
	err := r.DB.WithContext(ctx).
		Where("capture_key = ?", CaptureKey(orderID)).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ClearReconciliation baixa as capturas pendentes de conciliação da ordem,
// depois que uma nova tentativa liquidou o pagamento.
func (r *EventRepository) ClearReconciliation(ctx context.Context, orderID string) error {
	return r.DB.WithContext(ctx).
		Model(&Event{}).
		Where("order_id = ? AND kind = ? AND needs_reconciliation = ?", orderID, KindCapture, true).
		Update("needs_reconciliation", false).Error
}

// ListNeedingReconciliation lista os eventos inconclusivos, mais recentes primeiro.
func (r *EventRepository) ListNeedingReconciliation(ctx context.Context) ([]Event, error) {
	var es []Event
	err := r.DB.WithContext(ctx).
		Where("needs_reconciliation = ?", true).
		Order("created_at DESC").
		Find(&es).Error
	return es, err
}

func (r *EventRepository) ListByPayment(ctx context.Context, paymentID uint) ([]Event, error) {
	var es []Event
	err := r.DB.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&es).Error
	return es, err
}
