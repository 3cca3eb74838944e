package main

import (
	"github.com/rs/zerolog"

	"github.com/TusharChoudharyy/zava-chat-app/cli/cmd"
	"github.com/TusharChoudharyy/zava-chat-app/internal/logging"
)

func main() {
	logging.Init(zerolog.ErrorLevel)
	cmd.Execute()
}
