package payment

import (
	"strings"

	"golang.org/x/text/language"
)

// Status é o código canônico do pagamento. Valores fora do vocabulário são
// guardados em maiúsculas, sem validação; Known() identifica esse caso.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusOverdue    Status = "OVERDUE"
	StatusProcessing Status = "PROCESSING"
)

// DefaultStatus é aplicado quando a criação não informa status.
const DefaultStatus = StatusPending

var statusAliases = map[string]Status{
	"PENDIENTE":  StatusPending,
	"PENDING":    StatusPending,
	"PAGADO":     StatusPaid,
	"PAID":       StatusPaid,
	"VENCIDO":    StatusOverdue,
	"OVERDUE":    StatusOverdue,
	"PROCESANDO": StatusProcessing,
	"PROCESSING": StatusProcessing,
}

// NormalizeStatus mapeia o token recebido (es/en, qualquer caixa) para o código canônico.
func NormalizeStatus(raw string) Status {
	up := strings.ToUpper(strings.TrimSpace(raw))
	if s, ok := statusAliases[up]; ok {
		return s
	}
	return Status(up)
}

// Known informa se o status pertence aos quatro estados do modelo.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusProcessing:
		return true
	}
	return false
}

func (s Status) IsPaid() bool { return s == StatusPaid }

// IsPending compara sem diferenciar caixa, como no resumo do aluno.
func (s Status) IsPending() bool { return strings.EqualFold(string(s), string(StatusPending)) }

/* ============================== Rótulos ============================== */

var (
	labelLanguages = []language.Tag{language.Spanish, language.English}
	labelMatcher   = language.NewMatcher(labelLanguages)

	labels = map[language.Tag]map[Status]string{
		language.Spanish: {
			StatusPaid:       "Pagado",
			StatusPending:    "Pendiente",
			StatusOverdue:    "Vencido",
			StatusProcessing: "Procesando",
		},
		language.English: {
			StatusPaid:       "Paid",
			StatusPending:    "Pending",
			StatusOverdue:    "Overdue",
			StatusProcessing: "Processing",
		},
	}
)

// LabelLanguage escolhe o idioma dos rótulos a partir de um Accept-Language.
// Espanhol é o padrão.
func LabelLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Spanish
	}
	_, idx, _ := labelMatcher.Match(tags...)
	return labelLanguages[idx]
}

// Label retorna o rótulo legível; status desconhecido sai como está.
func (s Status) Label(lang language.Tag) string {
	if byStatus, ok := labels[lang]; ok {
		if l, ok := byStatus[s]; ok {
			return l
		}
	}
	return string(s)
}
