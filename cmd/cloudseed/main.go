package main

import "github.com/skyfold/cloudseed/cmd/cloudseed/commands"

func main() {
	commands.Execute()
}
