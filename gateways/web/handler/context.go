package handler

import (
	"context"

	pkgjwt "github.com/rishabh280305/SehatMitra-sub000/pkg/jwt"
)

func withClaims(ctx context.Context, claims *pkgjwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func claimsFrom(ctx context.Context) *pkgjwt.Claims {
	if claims, ok := ctx.Value(claimsKey).(*pkgjwt.Claims); ok {
		return claims
	}
	return &pkgjwt.Claims{}
}
