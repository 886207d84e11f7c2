package core

import "github.com/google/uuid"

// IdentifierAcquireNew returns a unique id for one replay run. It tags the
// final report so runs can be told apart when output is collected in bulk.
func IdentifierAcquireNew() string {
	return uuid.NewString()
}
