package payment

import (
	"time"

	"github.com/KromaEnergia/api-pagos/internal/utils"
	"github.com/shopspring/decimal"
)

type UpcomingPayment struct {
	ID      uint    `json:"id"`
	Concept string  `json:"concept"`
	Amount  float64 `json:"amount"`
	DueDate string  `json:"dueDate"`
	Status  Status  `json:"status"`
}

type Summary struct {
	PendingCount     int               `json:"pendingCount"`
	TotalDue         float64           `json:"totalDue"`
	UpcomingCount    int               `json:"upcomingCount"`
	UpcomingPayments []UpcomingPayment `json:"upcomingPayments"`
}

// Summarize considera apenas pagamentos PENDING; "próximos" são os com
// vencimento em today ou depois.
func Summarize(records []Payment, today time.Time) Summary {
	today = utils.AsDate(today)
	total := decimal.Zero
	s := Summary{UpcomingPayments: []UpcomingPayment{}}

	for _, p := range records {
		if !p.Status.IsPending() {
			continue
		}
		s.PendingCount++
		total = total.Add(p.Amount)

		if p.DueDate.IsZero() || utils.AsDate(p.DueDate).Before(today) {
			continue
		}
		s.UpcomingPayments = append(s.UpcomingPayments, UpcomingPayment{
			ID:      p.ID,
			Concept: p.Concept,
			Amount:  p.Amount.InexactFloat64(),
			DueDate: utils.FormatDate(p.DueDate),
			Status:  p.Status,
		})
	}

	s.TotalDue = total.InexactFloat64()
	s.UpcomingCount = len(s.UpcomingPayments)
	return s
}
