package watcher

import (
	"context"

	"github.com/Alwanly/resource-watcher/internal/command"
	"github.com/Alwanly/resource-watcher/internal/config"
	"github.com/Alwanly/resource-watcher/internal/fetcher"
	"github.com/Alwanly/resource-watcher/internal/models"
)

type IFetcher interface {
	Fetch(ctx context.Context, creds fetcher.Credentials) fetcher.Result
}

type IAuthenticator interface {
	ResolveToken(ctx context.Context, login config.LoginDescriptor) (string, bool, error)
}

type IExecutor interface {
	Start(ctx context.Context, command string, opts command.Options) (command.Handle, error)
}

// IRunHook observes command runs. Hooks are called from the command's
// goroutine and must not block for long; the gate stays closed meanwhile.
type IRunHook interface {
	RunStarted(ctx context.Context, run models.Run)
	RunFinished(ctx context.Context, run models.Run)
}
