// Idiomatic entrypoint for the Cobra CLI; command definitions live in root.go.
package main

func main() {
	Execute()
}
