package auth

import (
	"context"
	"errors"
)

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, error) {
	if s, ok := ctx.Value(ctxKey{}).(Session); ok && s.Valid() {
		return s, nil
	}
	return Session{}, errors.New("operator session not in context")
}

func OperatorID(ctx context.Context) (string, error) {
	s, err := SessionFrom(ctx)
	if err != nil {
		return "", err
	}
	return s.OperatorID, nil
}

func Role(ctx context.Context) (string, error) {
	s, err := SessionFrom(ctx)
	if err != nil {
		return "", err
	}
	return s.Role, nil
}
