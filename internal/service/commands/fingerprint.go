package commands

import (
	"encoding/json"
	"strings"

	apperrors "bytepad-backend/internal/errors"
)

// creationPrefix marks commands that create one entity and are deduplicated.
const creationPrefix = "create_"

// upsertCommands are creation-class commands without the prefix: they create
// or idempotently overwrite one entity.
var upsertCommands = map[string]bool{
	"write_journal": true,
}

// IsCreation reports whether a command is deduplicated by the gateway.
func IsCreation(name string) bool {
	return strings.HasPrefix(name, creationPrefix) || upsertCommands[name]
}

// Fingerprint derives the dedup key of a command call. Object keys are
// sorted at every depth, so argument order never changes the key.
func Fingerprint(name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", apperrors.Validation(apperrors.CodeInvalidArguments, "Arguments cannot be encoded").
			WithOperation(name).
			WithCause(err).
			Build()
	}
	return name + ":" + string(canonical), nil
}
