// SPDX-License-Identifier: MPL-2.0

package main

import cmd "workdir-cli/cmd/workdir"

func main() {
	cmd.Execute()
}
