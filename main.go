package main

import "github.com/pairline/pairline/cmd"

func main() {
	cmd.Execute()
}
