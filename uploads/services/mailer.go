package services

import (
	"fmt"

	"question-bank-backend/db/models"
	"question-bank-backend/utils"
)

// JobCompletionMailer emails the uploader when a job finishes with failed
// rows, pointing at the downloadable result workbook.
type JobCompletionMailer struct {
	baseURL string
}

func NewJobCompletionMailer(baseURL string) *JobCompletionMailer {
	return &JobCompletionMailer{baseURL: baseURL}
}

func (m *JobCompletionMailer) SendJobCompletionEmail(job *models.UploadJob) error {
	downloadLink := fmt.Sprintf("%s/api/v1/uploads/jobs/%s/result", m.baseURL, job.ID)
	subject := fmt.Sprintf("Bulk upload %q finished with %d failed rows", job.Filename, job.FailedRows)

	text := fmt.Sprintf(
		"Your bulk upload %s has finished.\n\nTotal rows: %d\nSucceeded: %d\nFailed: %d\n\nDownload the annotated result file here:\n%s\n",
		job.Filename, job.TotalRows, job.SucceededRows, job.FailedRows, downloadLink,
	)
	html := fmt.Sprintf(`
		<html>
			<body>
				<p>Your bulk upload <strong>%s</strong> has finished.</p>
				<ul>
					<li>Total rows: %d</li>
					<li>Succeeded: %d</li>
					<li>Failed: %d</li>
				</ul>
				<p><a href="%s" target="_blank">Download the annotated result file</a></p>
			</body>
		</html>
	`, job.Filename, job.TotalRows, job.SucceededRows, job.FailedRows, downloadLink)

	return utils.SendEmail(job.UploadedBy, subject, text, html)
}
