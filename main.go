package main

import "github.com/jsphweid/keyfall/cmd"

func main() {
	cmd.Execute()
}
