package main

import "github.com/Brownie44l1/httpd/internal/cmd"

func main() {
	cmd.Execute()
}
