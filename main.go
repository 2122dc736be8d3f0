package main

import "github.com/vibast-solutions/ms-go-wxpay/cmd"

func main() {
	cmd.Execute()
}
