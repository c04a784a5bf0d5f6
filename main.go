package main

import (
	"voicewave/cmd"
)

func main() {
	cmd.Execute()
}
