package main

import (
	"github.com/fariaslabs/sgfsync/logger"
	"github.com/fariaslabs/sgfsync/protocol"
)

func main() {
	if err := protocol.Execute(); err != nil {
		logger.Fatal(err)
	}
}
