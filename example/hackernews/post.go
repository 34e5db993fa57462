package main

import (
	"errors"

	"github.com/andrewwphillips/gqlkit/data/memory"
	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
)

type Link struct {
	ID          string `graphql:"id"`
	Description string
	URL         string `graphql:"url"`
	PostedBy    *User
}

// post returns the fetcher that creates a new link for the currently logged-in user
func post(links *memory.Repository, users *userStore) func(env *engine.Environment) (interface{}, error) {
	return func(env *engine.Environment) (interface{}, error) {
		id := userID(env.Context)
		if id == "" {
			return nil, errors.New("you must be logged in to post")
		}
		user, ok := users.get(id)
		if !ok {
			return nil, errors.New("unknown user: " + id)
		}

		link := Link{
			ID:          "L" + graphql.NewID(),
			Description: env.Arguments["description"].(string),
			URL:         env.Arguments["url"].(string),
			PostedBy:    &user,
		}
		if err := links.Save(link); err != nil {
			return nil, err
		}
		return link, nil
	}
}
