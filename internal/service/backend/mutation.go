// Package backend routes dataset operations to whichever store is
// authoritative: the running desktop app when it answers, the local file
// store otherwise.
package backend

import (
	"context"
	"encoding/json"

	"bytepad-backend/internal/domain"
)

// Op identifies the kind of operation carried by a Mutation.
type Op string

const (
	OpList          Op = "list"
	OpGet           Op = "get"
	OpCreate        Op = "create"
	OpUpdate        Op = "update"
	OpDelete        Op = "delete"
	OpUpsertJournal Op = "upsert_journal"
	OpCompleteTask  Op = "complete_task"
	OpCheckHabit    Op = "check_habit"
	OpGetSingleton  Op = "get_singleton"
	OpPutSingleton  Op = "put_singleton"
)

// IsWrite reports whether the operation changes the dataset.
func (o Op) IsWrite() bool {
	switch o {
	case OpList, OpGet, OpGetSingleton:
		return false
	}
	return true
}

// Mutation is one operation against the dataset. Reads travel the same route
// as writes so they observe the authoritative copy.
type Mutation struct {
	Op         Op
	Collection domain.CollectionName
	ID         string
	Date       string
	Singleton  domain.SingletonName
	Fields     map[string]any
}

// Deleted is the result of a delete.
type Deleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// MutationBackend applies a mutation and returns the JSON of the affected
// entity. A backend that cannot serve the call returns an UNREACHABLE error
// so the chain moves on.
type MutationBackend interface {
	Name() string
	Apply(ctx context.Context, m Mutation) (json.RawMessage, error)
}
