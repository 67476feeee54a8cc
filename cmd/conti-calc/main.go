// Command conti-calc runs the balance engine over a snapshot file, without
// a server or database.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
