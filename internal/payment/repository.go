// internal/payment/repository.go
package payment

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store é o repositório de pagamentos usado pelo Service.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id uint) (*Payment, error)
	ListAll(ctx context.Context) ([]Payment, error)
	ListByOwner(ctx context.Context, studentID uint) ([]Payment, error)
	Save(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, id uint) error
}

// Repository encapsula o acesso a dados de pagamentos.
type Repository struct {
	DB *gorm.DB
}

// NewRepository instancia um novo repositório.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

/* ========================= CRUD ========================= */

// Create grava o pagamento sem tocar no aluno associado.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// Get busca um pagamento com o aluno; ErrNotFound se não existir.
func (r *Repository) Get(ctx context.Context, id uint) (*Payment, error) {
	var p Payment
	err := r.DB.WithContext(ctx).Preload("Student").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]Payment, error) {
	var ps []Payment
	err := r.DB.WithContext(ctx).
		Preload("Student").
		Order("due_date ASC, id ASC").
		Find(&ps).Error
	return ps, err
}

// ListByOwner lista os pagamentos de um aluno, por vencimento.
func (r *Repository) ListByOwner(ctx context.Context, studentID uint) ([]Payment, error) {
	var ps []Payment
	err := r.DB.WithContext(ctx).
		Preload("Student").
		Where("student_id = ?", studentID).
		Order("due_date ASC, id ASC").
		Find(&ps).Error
	return ps, err
}

// Save atualiza todos os campos (Save exige PK). O aluno associado não é gravado.
func (r *Repository) Save(ctx context.Context, p *Payment) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// Delete é idempotente: apagar um id inexistente não é erro.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&Payment{}, id).Error
}
