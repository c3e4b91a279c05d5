package utils

import (
	"github.com/google/uuid"
)

// UUID generates new uuid v4 and returns value as string. All message and
// session ids in the runtime come from here.
func UUID() string {
	return uuid.New().String()
}
