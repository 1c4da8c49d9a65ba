// Command casedesk lists, exports and assigns insurance cases from the case
// backend. It runs one-shot commands, an interactive terminal session, or an
// HTTP service.
package main

func main() {
	Execute()
}
