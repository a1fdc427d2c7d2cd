// Package actorctx carries the authenticated principal on a request context.
package actorctx

import (
	"context"

	"github.com/geocoder89/clinicfinder/internal/domain/user"
	"github.com/geocoder89/clinicfinder/internal/session"
)

type ctxKey struct{}

// Principal is the freshly loaded user behind a valid session.
type Principal struct {
	User    user.User
	Session session.Session
}

func (p Principal) ID() int64       { return p.User.ID }
func (p Principal) Role() user.Role { return p.User.Role }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func From(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.User.ID != 0
}
