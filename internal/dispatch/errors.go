package dispatch

import "fmt"

// Kind classifies a failed dispatch attempt.
type Kind string

const (
	KindInvalidAddress      Kind = "invalid_address"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderRejected    Kind = "provider_rejected"
	KindTimeout             Kind = "timeout"
	KindUnknown             Kind = "unknown"
)

// ChannelError reports one failed transmission. It is data handed back to
// the fan-out engine and recorded on the recipient, not an exception:
// ordinary provider failures never abort a fan-out.
type ChannelError struct {
	Kind    Kind
	Message string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func channelError(kind Kind, format string, args ...any) *ChannelError {
	return &ChannelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
