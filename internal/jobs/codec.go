package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/booknest/booknest/internal/domain/job"
)

func EncodePayload(t JobType, payload any) (json.RawMessage, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobSendActivationEmail:
		switch payload.(type) {
		case ActivationEmailPayload, *ActivationEmailPayload:
		default:
			return nil, ErrPayloadTypeMismatch
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodeActivationEmail unmarshals and validates the payload of a
// send_activation_email job.
func DecodeActivationEmail(j job.Job) (ActivationEmailPayload, error) {
	if JobType(j.Type) != JobSendActivationEmail {
		return ActivationEmailPayload{}, ErrPayloadTypeMismatch
	}

	if len(j.Payload) == 0 {
		return ActivationEmailPayload{}, ErrInvalidJobPayload
	}

	var p ActivationEmailPayload

	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return ActivationEmailPayload{}, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	if strings.TrimSpace(p.TokenID) == "" || strings.TrimSpace(p.UserID) == "" {
		return ActivationEmailPayload{}, ErrInvalidJobPayload
	}

	return p, nil
}
