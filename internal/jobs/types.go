package jobs

type JobType string

const (
	JobSendActivationEmail JobType = "send_activation_email"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobSendActivationEmail:
		return true
	default:
		return false
	}
}
