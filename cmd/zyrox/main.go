// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Command zyrox drives the obfuscation engine over a single serialized
// IR module: read it in, run String-Encryption once, let the
// configuration script schedule the remaining passes per function,
// write the rewritten module back out.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
