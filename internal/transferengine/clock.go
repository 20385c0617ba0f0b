package transferengine

import (
	"time"

	"github.com/google/uuid"
)

func nowUnix() int64   { return time.Now().Unix() }
func newID() string    { return uuid.NewString() }
