// CLAUDE:SUMMARY ID generation for tasks, users, submissions and events via hazyhaar/pkg/idgen
package db

import "github.com/hazyhaar/pkg/idgen"

// NewID generates a 12-character base-36 ID.
func NewID() string {
	return idgen.New()
}
