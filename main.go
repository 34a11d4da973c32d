// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/packwright/packwright/cmd/packwright"

func main() {
	cmd.Execute()
}
