// Command wirectl inspects message types, checks and converts wire
// payloads, archives messages and serves all of it over HTTP.
package main

func main() {
	Execute()
}
