// blt-hackathons produces point-in-time snapshots of GitHub
// contribution activity for configured hackathon events. It is meant
// to run on a schedule; consumers read only the JSON it writes.
package main

import "github.com/OWASP-BLT/BLT-Hackathons/cmd"

func main() {
	cmd.Execute()
}
