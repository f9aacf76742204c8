package main

import "github.com/example/menu-scheduler/cmd"

func main() {
	cmd.Execute()
}
