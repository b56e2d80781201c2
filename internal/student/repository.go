package student

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("estudiante no encontrado")

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// FindByID resolve um aluno; ErrNotFound se não existir.
func (r *Repository) FindByID(ctx context.Context, id uint) (*Student, error) {
	var s Student
	err := r.DB.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
