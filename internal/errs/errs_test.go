package errs_test

import (
	"fmt"
	"testing"

	"mychat/backend/internal/errs"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{errs.ErrMalformedPayload, "malformed_payload"},
		{fmt.Errorf("append: %w", errs.ErrNotAMember), "not_a_member"},
		{fmt.Errorf("resolve sender: %w", errs.ErrUserNotFound), "user_not_found"},
		{errs.ErrChatNotFound, "chat_not_found"},
		{errs.ErrSenderMismatch, "sender_mismatch"},
		{fmt.Errorf("db down"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, errs.Code(tt.err), tt.err.Error())
	}
}
