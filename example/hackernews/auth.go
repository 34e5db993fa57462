package main

import (
	"context"
	"time"

	"github.com/andrewwphillips/gqlkit/web"
	"github.com/golang-jwt/jwt/v4"
)

const (
	appIssuer = "github.com/andrewwphillips/gqlkit/example/hackernews"
	appSecret = "GraphQL-is-awesome" // TODO get this from secret store

	userIDClaim = "jti"
	expiryClaim = "exp"
	issuerClaim = "iss"
)

// userID gets the ID of the logged-in user from the claims of the request's bearer token
func userID(ctx context.Context) string {
	claims, ok := web.ClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	id, _ := claims[userIDClaim].(string)
	return id
}

// getToken returns a JWT token for the given user ID.  This JWT indicates what user
// is logged in and can be used to authorise requests.
func getToken(userID string) (string, error) {
	return web.NewToken([]byte(appSecret), jwt.MapClaims{
		userIDClaim: userID,
		expiryClaim: time.Now().Add(time.Hour * 24).Unix(),
		issuerClaim: appIssuer,
	})
}
