// Command complaintdesk is a terminal client for the campus complaint
// service. Students file complaints and follow their status; administrators
// review every complaint, answer them and manage user accounts. The watch
// subcommand runs unattended and mirrors new complaints to Telegram.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
