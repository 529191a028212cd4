package jobs

import (
	"context"
	"log"
	"time"

	"github.com/edupay/tuition_pay/billing"
	"github.com/edupay/tuition_pay/database"
)

const (
	reminderWindowDays = 7
	reminderType       = "upcoming_installment"
)

// Wired in main before the cron scheduler starts.
var (
	ledger       *billing.Ledger
	billingStore *database.GormStore
	notifier     billing.Notifier
)

func InitBilling(l *billing.Ledger, s *database.GormStore, n billing.Notifier) {
	ledger = l
	billingStore = s
	notifier = n
}

// SendInstallmentReminders emails payers whose next installment falls due
// within the coming week. Each installment gets at most one reminder per
// window.
func SendInstallmentReminders() {
	log.Println("Running job: SendInstallmentReminders...")

	ctx := context.Background()
	now := time.Now().UTC()

	installments, err := ledger.InstallmentsDueWithin(ctx, now, reminderWindowDays)
	if err != nil {
		log.Printf("Error fetching upcoming installments: %v", err)
		return
	}
	if len(installments) == 0 {
		return
	}

	cutoff := now.AddDate(0, 0, -reminderWindowDays)
	sent := 0
	for _, inst := range installments {
		already, err := billingStore.ReminderSentSince(ctx, inst.ID, reminderType, cutoff)
		if err != nil {
			log.Printf("Error checking reminder history for installment %s: %v", inst.ID, err)
			continue
		}
		if already {
			continue
		}

		notifier.PaymentReminder(inst, inst.Enrollment)

		if err := billingStore.RecordReminder(ctx, inst.ID, reminderType, now); err != nil {
			log.Printf("Error recording reminder for installment %s: %v", inst.ID, err)
			continue
		}
		sent++
	}

	if sent > 0 {
		log.Printf("Sent %d installment reminder(s).", sent)
	}
}
