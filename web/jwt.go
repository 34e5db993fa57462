package web

// jwt.go has an interceptor that authenticates requests with a JWT bearer token

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrewwphillips/gqlkit/graphql"
	"github.com/golang-jwt/jwt/v4"
)

type claimsKey struct{}

const bearer = "Bearer "

// JWTInterceptor checks the bearer token of the Authorization header, which must be signed with the (HMAC)
// secret, and adds its claims to the context (see ClaimsFromContext).  Requests without an Authorization
// header are passed on unchanged; requests with an invalid token get an UNAUTHORIZED error.
func JWTInterceptor(secret []byte, options ...jwt.ParserOption) Interceptor {
	parser := jwt.NewParser(options...)
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	}

	return InterceptorFunc(func(ctx context.Context, request *WebRequest, next Chain) (*WebResponse, error) {
		auth := request.Header.Get("Authorization")
		if auth == "" {
			return next(ctx, request)
		}
		if !strings.HasPrefix(auth, bearer) {
			return errorResponse("authorization is not a bearer token", graphql.Unauthorized), nil
		}
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(auth[len(bearer):], claims, keyFunc)
		if err != nil {
			return errorResponse("invalid token: "+err.Error(), graphql.Unauthorized), nil
		}
		if !token.Valid {
			return errorResponse("invalid token", graphql.Unauthorized), nil
		}
		return next(context.WithValue(ctx, claimsKey{}, claims), request)
	})
}

// ClaimsFromContext gets the claims of the token that JWTInterceptor validated
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// NewToken makes an HS256 signed token with the claims (eg for a login mutation or in tests)
func NewToken(secret []byte, claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
