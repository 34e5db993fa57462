package main

import (
	"errors"
	"sync"

	"github.com/andrewwphillips/gqlkit/engine"
	"github.com/andrewwphillips/gqlkit/graphql"
	"golang.org/x/crypto/bcrypt"
)

type (
	User struct {
		ID       string `graphql:"id"`
		Name     string
		Email    string
		password string
	}

	AuthPayload struct {
		Token string
		User  User
	}

	userStore struct {
		mu    sync.Mutex
		users map[string]User
	}
)

func newUserStore() *userStore {
	return &userStore{users: make(map[string]User)}
}

func (s *userStore) get(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// signup creates a new user.
func (s *userStore) signup(env *engine.Environment) (interface{}, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(env.Arguments["password"].(string)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := User{
		ID:       "U" + graphql.NewID(),
		Name:     env.Arguments["name"].(string),
		Email:    env.Arguments["email"].(string),
		password: string(hash),
	}
	token, err := getToken(user.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return AuthPayload{Token: token, User: user}, nil
}

// login authenticates a user.
func (s *userStore) login(env *engine.Environment) (interface{}, error) {
	email, password := env.Arguments["email"].(string), env.Arguments["password"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, user := range s.users {
		if user.Email == email {
			if err := bcrypt.CompareHashAndPassword([]byte(user.password), []byte(password)); err == nil {
				token, err := getToken(id)
				if err != nil {
					return nil, err
				}
				return AuthPayload{Token: token, User: user}, nil
			}
			// don't break in case of multiple logins with the same email addr.
		}
	}
	return nil, errors.New("invalid email or password")
}
