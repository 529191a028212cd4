package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	config "github.com/edupay/tuition_pay/configs"
	"github.com/edupay/tuition_pay/database"
	"github.com/edupay/tuition_pay/models"
	"github.com/edupay/tuition_pay/notifications"
)

// CheckAndGenerateStatement runs after an installment is marked paid.
// Once every installment of the enrollment is paid it renders a
// paid-in-full statement PDF, uploads it and emails the payer the link.
func CheckAndGenerateStatement(enrollmentID uuid.UUID) {
	var enrollment models.Enrollment
	if err := database.DB.First(&enrollment, "id = ?", enrollmentID).Error; err != nil {
		log.Printf("🔥 Failed to load enrollment %s for statement: %v", enrollmentID, err)
		return
	}

	var installments []models.Installment
	if err := database.DB.Where("enrollment_id = ?", enrollmentID).Order("installment_number ASC").Find(&installments).Error; err != nil {
		log.Printf("🔥 Failed to load installments for enrollment %s: %v", enrollmentID, err)
		return
	}

	for _, inst := range installments {
		if inst.Status != models.InstallmentStatusPaid {
			return
		}
	}

	htmlData, err := generateStatementHTML(enrollment, installments)
	if err != nil {
		log.Printf("🔥 Failed to generate statement HTML: %v", err)
		return
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate statement PDF: %v", err)
		return
	}

	statementURL, err := uploadToCloudinary(pdfBytes, enrollment.ID.String())
	if err != nil {
		log.Printf("🔥 Failed to upload statement to Cloudinary: %v", err)
		return
	}

	subject := fmt.Sprintf("Your %s Tuition is Paid in Full!", enrollment.UniversityName)
	body := fmt.Sprintf(
		"<h1>Congratulations!</h1><p>Hi %s,</p><p>All %d installments of your %s payment plan are paid. Your statement is ready:</p><p><a href='%s'>Download Statement</a></p>",
		enrollment.FirstName, len(installments), enrollment.UniversityName, statementURL,
	)
	go notifications.SendEmail(enrollment.FirstName+" "+enrollment.LastName, enrollment.Email, subject, body)

	log.Printf("✅ Generated paid-in-full statement for enrollment %s.", enrollment.ID)
}

func generateStatementHTML(enrollment models.Enrollment, installments []models.Installment) (string, error) {
	tmpl, err := template.ParseFiles("templates/statement.html")
	if err != nil {
		return "", err
	}

	type statementLine struct {
		Number int
		Amount string
		PaidAt string
	}
	lines := make([]statementLine, 0, len(installments))
	for _, inst := range installments {
		paidAt := ""
		if inst.PaidAt != nil {
			paidAt = inst.PaidAt.Format("January 2, 2006")
		}
		lines = append(lines, statementLine{
			Number: inst.InstallmentNumber,
			Amount: inst.Amount.StringFixed(2),
			PaidAt: paidAt,
		})
	}

	data := struct {
		PayerName      string
		UniversityName string
		StudentID      string
		PlanName       string
		TotalAmount    string
		Lines          []statementLine
		IssuedDate     string
	}{
		PayerName:      enrollment.FirstName + " " + enrollment.LastName,
		UniversityName: enrollment.UniversityName,
		StudentID:      enrollment.StudentID,
		PlanName:       enrollment.PaymentPlan,
		TotalAmount:    enrollment.TotalAmount.StringFixed(2),
		Lines:          lines,
		IssuedDate:     time.Now().Format("January 2, 2006"),
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadToCloudinary(fileBytes []byte, enrollmentID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("statements/%s_%s", enrollmentID, uuid.New().String()),
		Folder:       "tuition_pay_statements",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
