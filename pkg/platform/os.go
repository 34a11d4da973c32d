// SPDX-License-Identifier: MPL-2.0

package platform

// Values of runtime.GOOS that change packwright's behavior.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
