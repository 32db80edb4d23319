// Command overlayd serves live dialogue overlays and manages the script they
// match against.
package main

func main() {
	Execute()
}
