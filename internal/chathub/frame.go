package chathub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mychat/backend/internal/errs"
	"mychat/backend/internal/models"

	"github.com/go-playground/validator/v10"
)

var frameValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseFrame strictly decodes an inbound frame. Unknown fields, trailing data, missing
// fields and invalid values are all reported as errs.ErrMalformedPayload.
func ParseFrame(raw []byte) (*models.InboundFrame, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var frame models.InboundFrame
	if err := dec.Decode(&frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after frame", errs.ErrMalformedPayload)
	}
	if frame.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", errs.ErrMalformedPayload)
	}
	if err := frameValidator.Struct(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}
	return &frame, nil
}

// errorFrame encodes err as an error frame for the sender.
func errorFrame(err error, chatID uint) []byte {
	code := errs.Code(err)
	message := err.Error()
	if code == "internal" {
		message = "internal error"
	}
	data, _ := json.Marshal(models.NewErrorFrame(code, message, chatID))
	return data
}
