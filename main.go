package main

import "github.com/frahmantamala/payment-processing/cmd"

func main() {
	cmd.Execute()
}
