package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"gridstream/pkg/app"
	"gridstream/pkg/config"
	"gridstream/pkg/server"

	"github.com/spf13/viper"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.gs/config.yaml)")
	addr := flag.String("addr", "", "listen address (default from server.addr)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *addr != "" {
		viper.Set("server.addr", *addr)
	}

	// 2. Init Core Application
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize app: %v", err)
	}
	defer application.Close()
	fmt.Println("✅ gridstream core initialized.")

	// 3. Serve until SIGINT / SIGTERM, then graceful stop
	listen := viper.GetString("server.addr")
	fmt.Printf("🚀 gRPC Server listening on %s...\n", listen)
	if err := server.Run(ctx, listen, application); err != nil {
		log.Printf("❌ Server error: %v", err)
		return
	}
	fmt.Println("👋 Server stopped.")
}
