package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowSetupGuide explains where each value asked for during setup is found
func ShowSetupGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "TRANSPARENT CLASSROOM SETUP")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STEP 1: Sign in at https://www.transparentclassroom.com with the")
	fmt.Fprintln(w, "        email and password you use as a parent.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STEP 2: Open your child's page. The address looks like:")
	fmt.Fprintln(w, "        https://www.transparentclassroom.com/schools/<SCHOOL>/children/<CHILD>")
	fmt.Fprintln(w, "        The two numbers are the school ID and the child ID.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STEP 3: Choose the school location written into each photo's")
	fmt.Fprintln(w, "        .metadata.txt file. Setup can try to read it from the portal.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Credentials are kept in the system keychain when one is available,")
	fmt.Fprintln(w, "otherwise in an encrypted file. Set TC_PASSPHRASE to choose the")
	fmt.Fprintln(w, "encryption passphrase yourself.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)
}

// ShowCookieGuide explains how to export a browser session when the
// automated sign-in is blocked
func ShowCookieGuide(w io.Writer) {
	fmt.Fprintln(w, "\nIf sign-in keeps failing, export your browser cookies instead:")
	fmt.Fprintln(w, "   1. Sign in to Transparent Classroom in your browser")
	fmt.Fprintln(w, "   2. Export cookies for transparentclassroom.com in Netscape format")
	fmt.Fprintln(w, "      (\"cookies.txt\" browser extensions produce this format)")
	fmt.Fprintln(w, "   3. Run: tcphotos download --cookies cookies.txt")
}
