// hitouch はデジタル名刺カードのAPIサーバーとバックグラウンドワーカーのエントリーポイント。
//
// 使い方:
//
//	hitouch [serve|worker|migrate|healthcheck|preview]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/hitouch/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hitouch: %v\n", err)
		os.Exit(1)
	}
}
