package httpapi

import (
	"context"

	"github.com/matchi-app/matchi-api/internal/domain"
)

// authSource records which middleware authenticated the request.
type authSource string

const (
	authSourceJWT authSource = "jwt"
	authSourceDev authSource = "dev"
)

type principal struct {
	subject domain.SubjectID
	source  authSource
}

type principalKey struct{}

func withPrincipal(ctx context.Context, sub string, src authSource) context.Context {
	return context.WithValue(ctx, principalKey{}, principal{subject: domain.SubjectID(sub), source: src})
}

// subjectFrom returns the authenticated subject, or "" on public routes.
func subjectFrom(ctx context.Context) domain.SubjectID {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p.subject
}

func authSourceFrom(ctx context.Context) authSource {
	p, _ := ctx.Value(principalKey{}).(principal)
	return p.source
}
