package main

import (
	"go-tarot-gen/cmd/tarot-gen/cmd"
	"go-tarot-gen/internal/api"
)

func main() {
	// Flush and close any API log files on exit
	defer api.CloseAllLoggingTransports()

	cmd.Execute()
}
