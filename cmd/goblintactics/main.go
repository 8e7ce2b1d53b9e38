package main

import (
	"github.com/mikkokallio/goblin-tactics/internal/cli"
	"github.com/mikkokallio/goblin-tactics/pkg/logger"
)

func init() {
	logger.Init()
}

func main() {
	cli.Execute()
}
