// watcher runs a command whenever a remote resource changes.
package main

// @title           Resource Watcher - Status API
// @version         1.0
// @description     Read-only status API of the resource watcher: loop state, command run history and metrics.
// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html
// @host      localhost:9090
// @BasePath  /
// @securityDefinitions.basic  BasicAuth

import (
	"os"

	"github.com/Alwanly/resource-watcher/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
