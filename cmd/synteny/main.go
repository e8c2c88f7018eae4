package main

import "github.com/grailbio/synteny/cmd/synteny/cmd"

func main() {
	cmd.Run()
}
