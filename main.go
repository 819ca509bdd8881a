/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "botgate/cmd"

func main() {
	cmd.Execute()
}
