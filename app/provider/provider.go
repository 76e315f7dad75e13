package provider

import "context"

type EmailProvider interface {
	Name() string
	SendRaw(ctx context.Context, recipient string, raw []byte) error
}
