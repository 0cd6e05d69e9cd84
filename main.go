package main

import "github.com/lockplane/provision/cmd"

func main() {
	cmd.Execute()
}
