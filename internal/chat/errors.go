package chat

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/propchat/internal/security"
	"github.com/kiranshivaraju/propchat/internal/usage"
)

// ErrValidation marks a malformed chat request. Nothing was called.
var ErrValidation = errors.New("invalid chat request")

// BlockedError is returned when the security screen refused the message.
type BlockedError struct {
	Threats security.Threats
	Text    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("message blocked: %d threat(s), max severity %s", len(e.Threats), e.Threats.Max())
}

// QuotaError is returned when the tenant used up its token allowance.
type QuotaError struct {
	Status usage.Status
	Text   string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("token quota exceeded: %d of %d used", e.Status.Used, e.Status.Limit)
}
