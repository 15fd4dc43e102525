package main

import "guild-chat-service/cmd"

func main() {
	cmd.Execute()
}
