package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduledInstallment is one line of a computed payment schedule.
type ScheduledInstallment struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

type Schedule struct {
	AdminFee       decimal.Decimal        `json:"admin_fee"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
	PerInstallment decimal.Decimal        `json:"per_installment"`
	Installments   []ScheduledInstallment `json:"installments"`
}

// Calculator derives fees and schedules. It is pure: same inputs, same
// schedule, no I/O. MaxTuition is the injected enrollment ceiling; zero
// means no ceiling.
type Calculator struct {
	MaxTuition decimal.Decimal
}

// ComputeSchedule is the single authority on the fee formula. All amounts
// are kept in cents via decimal arithmetic, rounded half-up. The division
// remainder is folded into the last installment so the lines always sum
// exactly to TotalAmount:
//
//	adminFee = round2(tuition * feeRate)
//	total    = tuition + adminFee
//	per      = round2(total / n)
//	last     = total - per*(n-1)
//
// Installment 1 is due on startDate; installment i is due i-1 calendar
// months later, with month-end days clamped (Jan 31 -> Feb 28/29).
func (c Calculator) ComputeSchedule(tuition decimal.Decimal, plan Plan, startDate time.Time) (Schedule, error) {
	if tuition.Sign() <= 0 {
		return Schedule{}, ErrInvalidAmount
	}
	if !tuition.Equal(tuition.Round(2)) {
		return Schedule{}, ErrInvalidAmount
	}
	if c.MaxTuition.Sign() > 0 && tuition.GreaterThan(c.MaxTuition) {
		return Schedule{}, ErrInvalidAmount
	}

	n := plan.TotalInstallments
	adminFee := tuition.Mul(plan.FeeRate).Round(2)
	total := tuition.Add(adminFee)
	per := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))

	installments := make([]ScheduledInstallment, 0, n)
	for i := 1; i <= n; i++ {
		amount := per
		if i == n {
			amount = last
		}
		installments = append(installments, ScheduledInstallment{
			Number:  i,
			Amount:  amount,
			DueDate: AddCalendarMonths(startDate, i-1),
		})
	}

	return Schedule{
		AdminFee:       adminFee,
		TotalAmount:    total,
		PerInstallment: per,
		Installments:   installments,
	}, nil
}

// AddCalendarMonths advances t by whole calendar months, clamping the day
// to the target month's length instead of letting it spill over the way
// time.AddDate does.
func AddCalendarMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	h, min, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, h, min, sec, t.Nanosecond(), t.Location())
}
