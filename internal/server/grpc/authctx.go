package grpcserver

import (
	"context"

	"github.com/and161185/doc-issuer/internal/model"
)

type ctxKey string

const addressKey ctxKey = "ledger.address"

// WithAddress stores the authenticated account address in context.
func WithAddress(ctx context.Context, addr model.Address) context.Context {
	return context.WithValue(ctx, addressKey, addr)
}

// AddressFromCtx fetches the authenticated account address from context.
func AddressFromCtx(ctx context.Context) (model.Address, bool) {
	v := ctx.Value(addressKey)
	if v == nil {
		return "", false
	}
	addr, ok := v.(model.Address)
	return addr, ok && addr != ""
}
