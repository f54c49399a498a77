package repository

import (
	"context"
	"errors"
)

// ErrStateNotFound is returned when no state exists for the given id.
var ErrStateNotFound = errors.New("adventure state not found")

// StateRepository persists serialized adventure states. The engine treats
// storage as opaque: it hands over JSON and gets JSON back.
//
// StoreState persists the blob; when sessionKey is empty a new id is
// minted, otherwise the blob is written under the existing key. The state
// id is returned either way. GetState returns ErrStateNotFound for unknown
// ids. The user index lets a reconnecting user resume their latest
// adventure without a state id.
type StateRepository interface {
	StoreState(ctx context.Context, stateJSON []byte, sessionKey string) (string, error)
	GetState(ctx context.Context, id string) ([]byte, error)
	SetActiveState(ctx context.Context, userID, stateID string) error
	ActiveStateID(ctx context.Context, userID string) (string, error)
}
