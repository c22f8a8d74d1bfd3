// Command xscraper retrieves X posts and authors from the command line.
package main

func main() {
	Execute()
}
