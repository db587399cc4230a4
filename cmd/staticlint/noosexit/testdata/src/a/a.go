package main

import "os"

func helper() {
	os.Exit(2)
}

func main() {
	helper()
	defer func() {}()
	os.Exit(1) // want "avoid using os.Exit in main.main"
}
