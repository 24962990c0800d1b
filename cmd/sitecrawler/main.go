package main

import "github.com/JakeFAU/sitecrawler/cmd"

func main() {
	cmd.Execute()
}
