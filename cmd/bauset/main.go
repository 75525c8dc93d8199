package main

import "github.com/oshokin/bauset/cmd/bauset/cmd"

func main() {
	cmd.Execute()
}
