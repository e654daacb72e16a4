package main

import "github.com/ternlabs/tern/cmd"

func main() {
	cmd.Execute()
}
