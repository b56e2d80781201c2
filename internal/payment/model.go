// internal/payment/model.go
package payment

import (
	"time"

	"github.com/KromaEnergia/api-pagos/internal/student"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment representa uma única cobrança de mensalidade de um aluno.
type Payment struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	StudentID     uint             `gorm:"not null;index" json:"studentId"`
	Student       *student.Student `gorm:"foreignKey:StudentID" json:"-"`
	Amount        decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"amount"`
	Concept       string           `gorm:"size:255;not null" json:"concept"`
	DueDate       time.Time        `gorm:"type:date;not null;index" json:"dueDate"`
	PaidDate      *time.Time       `gorm:"type:date" json:"paidDate"`
	Status        Status           `gorm:"size:30;not null;default:'PENDING';index" json:"status"`
	InvoiceNumber *string          `gorm:"size:100" json:"invoiceNumber"`
	TransactionID *string          `gorm:"size:100;index" json:"transactionId"`
	Grade         *string          `gorm:"size:50" json:"grade"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// reconcilePaidDate é o único ponto que mantém a regra
// "data de pagamento presente se, e somente se, status == PAID".
func (p *Payment) reconcilePaidDate(today time.Time) {
	if !p.Status.IsPaid() {
		p.PaidDate = nil
		return
	}
	if p.PaidDate == nil {
		t := today
		p.PaidDate = &t
	}
}

// Migrate cria a tabela no banco de dados.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{})
}
