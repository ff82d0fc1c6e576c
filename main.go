package main

import "github.com/kebairia/bakd/cmd"

func main() {
	cmd.Execute()
}
