package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekani/crew-server/internal/api"
	"github.com/ekani/crew-server/internal/chatroom"
	"github.com/ekani/crew-server/internal/match"
	"github.com/ekani/crew-server/internal/messaging"
	"github.com/ekani/crew-server/internal/notify"
	"github.com/ekani/crew-server/internal/ratelimit"
	"github.com/ekani/crew-server/internal/ws"
)

func main() {
	config := ws.DefaultConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	matchExpire := match.DefaultMatchExpire
	if v := os.Getenv("MATCH_EXPIRE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			matchExpire = time.Duration(n) * time.Second
		}
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "crew-matchserver"
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Match core ---
	queue := match.NewRedisQueue(rdb)
	state := match.NewRedisState(rdb)
	roomStore := chatroom.NewStore(rdb)
	roomCreator := chatroom.NewCreator(roomStore, natsClient)

	server := ws.NewServer(config)
	notifier := notify.NewNotifier(server, natsClient)
	notify.AttachRelay(server, natsClient)

	coordinator := match.NewCoordinator(queue, state, roomCreator, notifier, matchExpire)

	// --- Rate limiting ---
	limiter := ratelimit.NewLimiter(rdb)
	server.UpgradeGate = func(r *http.Request) bool {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		allowed, _ := limiter.Allow(r.Context(), host, ratelimit.RuleConnect)
		return allowed
	}

	// --- REST surface ---
	handler := api.NewHandler(coordinator, limiter)
	handler.Register(server)

	log.Printf("crew match server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  match_expire:    %s", matchExpire)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  nats_url:        %s", natsConfig.URL)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	natsClient.Close()
	rdb.Close()
}
