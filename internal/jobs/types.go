package jobs

type JobType string

const (
	JobSendInvitation        JobType = "send_invitation"
	JobSendPasswordReset     JobType = "send_password_reset"
	JobSendEmailConfirmation JobType = "send_email_confirmation"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case JobSendInvitation, JobSendPasswordReset, JobSendEmailConfirmation:
		return true
	default:
		return false
	}
}
