package notifications

import (
	"fmt"
	"strings"

	"github.com/edupay/tuition_pay/models"
)

// EmailNotifier implements billing.Notifier over the Brevo client.
// Every method is fire-and-forget: a mail failure is logged inside
// SendEmail and never reaches the enrollment flow.
type EmailNotifier struct{}

func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{}
}

func (n *EmailNotifier) EnrollmentConfirmed(enrollment models.Enrollment, installments []models.Installment) {
	var rows strings.Builder
	for _, inst := range installments {
		status := titleCase(inst.Status)
		rows.WriteString(fmt.Sprintf(
			"<tr><td>%d</td><td>$%s</td><td>%s</td><td>%s</td></tr>",
			inst.InstallmentNumber, inst.Amount.StringFixed(2), inst.DueDate.Format("January 2, 2006"), status,
		))
	}

	subject := fmt.Sprintf("Your %s Payment Plan is Confirmed!", enrollment.UniversityName)
	body := fmt.Sprintf(
		"<h1>Payment Plan Confirmed</h1>"+
			"<p>Hi %s,</p>"+
			"<p>Your tuition payment plan for <b>%s</b> is set up. Tuition: $%s, admin fee: $%s, total: <b>$%s</b> across %d payments.</p>"+
			"<table border='1' cellpadding='6'><tr><th>#</th><th>Amount</th><th>Due Date</th><th>Status</th></tr>%s</table>"+
			"<p>Your first installment has been charged. You can track everything from your dashboard.</p>",
		enrollment.FirstName, enrollment.UniversityName,
		enrollment.TuitionAmount.StringFixed(2), enrollment.AdminFee.StringFixed(2), enrollment.TotalAmount.StringFixed(2),
		len(installments), rows.String(),
	)

	SendEmail(enrollment.FirstName+" "+enrollment.LastName, enrollment.Email, subject, body)
}

func (n *EmailNotifier) PaymentReminder(installment models.Installment, enrollment models.Enrollment) {
	subject := fmt.Sprintf("Reminder: Tuition Installment %d Due %s", installment.InstallmentNumber, installment.DueDate.Format("January 2"))

	payLine := "<p>This installment will be collected automatically from your card on file.</p>"
	if installment.PaymentChannel == models.PaymentChannelACHLink && installment.PaymentLinkURL != nil {
		payLine = fmt.Sprintf("<p><b>Pay now:</b> <a href='%s'>Complete your bank transfer</a></p>", *installment.PaymentLinkURL)
	}

	body := fmt.Sprintf(
		"<h1>Payment Reminder</h1>"+
			"<p>Hi %s,</p>"+
			"<p>Installment %d of your %s payment plan ($%s) is due on %s.</p>%s",
		enrollment.FirstName, installment.InstallmentNumber, enrollment.UniversityName,
		installment.Amount.StringFixed(2), installment.DueDate.Format("January 2, 2006"), payLine,
	)

	SendEmail(enrollment.FirstName+" "+enrollment.LastName, enrollment.Email, subject, body)
}

func titleCase(status string) string {
	if status == "" {
		return status
	}
	return strings.ToUpper(status[:1]) + status[1:]
}
