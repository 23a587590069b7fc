// Karja - EC2 Fleet Companion
// Mark. Act. Done.
package main

func main() {
	Execute()
}
