//go:build tools

// this file is here so that `go mod download` will download the modules needed to build the project
package tools

import (
	_ "github.com/go-task/task/v3/cmd/task"
	_ "gotest.tools/gotestsum"
)
