package console

import (
	"fmt"
	"io"
)

// AppVersion is shown in the usage box.
const AppVersion = "0.1"

const line = " --------------------------------------------------"

// Usage prints the title box and the key menu.
func Usage(w io.Writer) {
	fmt.Fprintf(w, " +------------------------------------------------+\n"+
		" |              DL JC Storage Example             |\n"+
		" |                 version %s                    |\n"+
		" +------------------------------------------------+\n"+
		"                              For exit, hit escape.\n", AppVersion)
	fmt.Fprintln(w, line)
	fmt.Fprint(w, "  (1) - Write card\n"+
		"  (2) - Fast read (streaming method using extended length R-APDUs)\n"+
		"  (3) - Read (chunked mechanism, normal speed)\n"+
		"  (4) - Is card in field storage type?\n"+
		"(Esc) - Quit example\n")
}

// Opening is printed while the reader session is being opened.
func Opening(w io.Writer) {
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "     Please wait while opening uFR NFC reader.")
	fmt.Fprintln(w, line)
}

// Opened is printed once the session passed the version check.
func Opened(w io.Writer) {
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "        uFR NFC reader successfully opened.")
	fmt.Fprintln(w, line)
}
