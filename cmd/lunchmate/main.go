// Command lunchmate は同僚のランチ先共有サービスのAPIサーバーとワーカーを起動する。
//
// 使い方:
//
//	lunchmate [serve|worker|migrate|seed|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/lunchmate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lunchmate: %v\n", err)
		os.Exit(1)
	}
}
