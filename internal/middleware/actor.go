package middleware

import (
	"context"

	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/router"
	"github.com/dropvault/backend/pkg/xcontext"
)

// ActorHeader carries the caller identity set by the gateway after it
// verifies the access token. This service trusts it as-is.
const ActorHeader = "X-Actor-Id"

// WithActor records the caller identity on the context so audit log rows
// attribute admin actions to a person.
func WithActor() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		if actor := xcontext.HTTPRequest(ctx).Header.Get(ActorHeader); actor != "" {
			ctx = xcontext.WithRequestUserID(ctx, actor)
		}

		return ctx, nil
	}
}

// RequireActor rejects requests without a caller identity. Admin surfaces
// use it so every mutation lands in the audit log with a real actor.
func RequireActor() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		if xcontext.RequestUserID(ctx) == "" {
			return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
		}

		return ctx, nil
	}
}

// Logger logs one line per request with its method and path.
func Logger() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		r := xcontext.HTTPRequest(ctx)
		xcontext.Logger(ctx).Infof("%s | %s", r.Method, r.URL.Path)
		return ctx, nil
	}
}
