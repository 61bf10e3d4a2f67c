package all

import (
	// Import all commands
	_ "github.com/robotalks/plc.go/pkg/cli/cmds/points"
)
