/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/kuldevta/estate-api/cmd"

func main() {
	cmd.Execute()
}
