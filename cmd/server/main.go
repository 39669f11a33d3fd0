package main

import "github.com/jobhouse/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
