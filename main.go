package main

import (
	"github.com/nugl/affiliate-engine/cmd"
	_ "github.com/nugl/affiliate-engine/cmd/cli"
	_ "github.com/nugl/affiliate-engine/cmd/server"
)

func main() {
	cmd.Execute()
}
