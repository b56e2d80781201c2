package student

import (
	"time"

	"gorm.io/gorm"
)

// Student é o dono das cobranças. O cadastro de alunos é mantido por outro serviço;
// aqui só existe leitura.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Grade     string    `gorm:"size:50" json:"grade"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Migrate cria a tabela no banco de dados.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Student{})
}
