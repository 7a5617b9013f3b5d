package main

import "github.com/nethalo/acceldump/cmd"

func main() {
	cmd.Execute()
}
