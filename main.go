package main

import "github.com/OptimiLabs/velocity/cmd"

func main() {
	cmd.Execute()
}
