package memory_test

import (
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
)

var (
	_ service.SessionStore    = (*memory.SessionStore)(nil)
	_ service.RevocationStore = (*memory.RevocationStore)(nil)
	_ service.WindowStore     = (*memory.WindowStore)(nil)
	_ service.UserDirectory   = (*memory.Directory)(nil)
	_ service.QuotaStore      = (*memory.Directory)(nil)
	_ service.Sweeper         = (*memory.SessionStore)(nil)
	_ service.Sweeper         = (*memory.RevocationStore)(nil)
	_ service.Sweeper         = (*memory.WindowStore)(nil)
)
