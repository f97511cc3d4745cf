// @title eyescan-server API
// @version 1.0
// @description Eye condition detection adapter over a hosted object-detection model.
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"eyescan-server/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [BOOT] starting eyescan-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "eyescan-server failed: %v\n", err)
		os.Exit(1)
	}
}
