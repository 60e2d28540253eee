package handler

import (
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// MessageRequest is the send/receive payload. The pipeline owns full phone
// and content validation; this only rejects obviously empty submissions.
type MessageRequest struct {
	Phone   string `json:"phone"`
	Content string `json:"content"`
}

// Validate checks the required fields.
func (r *MessageRequest) Validate() error {
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	return nil
}
