// Package main - clock-watch
// Connects to a farm server's websocket and prints the streamed events.
// With -clients > 1 it runs that many quiet watchers as a load test and
// prints throughput instead.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/network"
)

// Config for the watcher
type Config struct {
	ServerURL     string
	NumClients    int
	SnapshotEvery time.Duration
	Duration      time.Duration
	Events        []events.EventType
}

// Stats tracks load-test counters
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 1, "Number of concurrent watchers")
	snapshotEvery := flag.Duration("snapshot", 0, "Request a clock snapshot at this interval (0 = never)")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	filter := flag.String("events", "", "Comma-separated event types to subscribe to (empty = all)")
	flag.Parse()

	config := Config{
		ServerURL:     *serverURL,
		NumClients:    *numClients,
		SnapshotEvery: *snapshotEvery,
		Duration:      *duration,
		Events:        parseEventTypes(*filter),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if config.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, config.Duration)
		defer stop()
	}

	if config.NumClients <= 1 {
		if err := watch(ctx, config, os.Stdout, nil); err != nil && ctx.Err() == nil {
			log.Fatalf("clock-watch: %v", err)
		}
		return
	}

	stats := &Stats{}
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, config, nil, stats); err != nil && ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
		}()
		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()
	printResults(stats, config, time.Since(start))
}

func parseEventTypes(s string) []events.EventType {
	if s == "" {
		return nil
	}
	var out []events.EventType
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, events.EventType(strings.ToUpper(part)))
		}
	}
	return out
}

// watch streams until ctx ends. Messages are printed to out when it is
// non-nil and counted in stats when that is non-nil.
func watch(ctx context.Context, config Config, out *os.File, stats *Stats) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(req network.Request) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if stats != nil {
			atomic.AddInt64(&stats.MessagesSent, 1)
		}
		return conn.WriteJSON(req)
	}

	if len(config.Events) > 0 {
		if err := send(network.Request{Type: network.MessageSubscribe, Events: config.Events}); err != nil {
			return err
		}
	}
	if err := send(network.Request{Type: network.MessageSnapshot}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		conn.Close()
	}()

	if config.SnapshotEvery > 0 {
		go func() {
			ticker := time.NewTicker(config.SnapshotEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if send(network.Request{Type: network.MessageSnapshot}) != nil {
						return
					}
				}
			}
		}()
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		// The hub batches queued messages into one frame, one per line.
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			if stats != nil {
				atomic.AddInt64(&stats.MessagesReceived, 1)
			}
			if out == nil {
				continue
			}
			var env network.Envelope
			if err := json.Unmarshal(line, &env); err != nil {
				fmt.Fprintf(out, "?? %s\n", line)
				continue
			}
			fmt.Fprintln(out, formatEnvelope(env))
		}
	}
}

func formatEnvelope(env network.Envelope) string {
	switch env.Type {
	case network.MessageSnapshot:
		s := env.Snapshot
		if s == nil {
			return "[clock] (empty)"
		}
		phase := "day"
		if s.IsNight {
			phase = "night"
		}
		paused := ""
		if s.Paused {
			paused = " (paused)"
		}
		return fmt.Sprintf("[clock] day %d %s %s, %s, %s%s", s.TotalDay, s.TimeString(), phase, s.Season, s.Weather, paused)
	case network.MessageEvent:
		e := env.Event
		if e == nil {
			return "[event] (empty)"
		}
		payload, _ := json.Marshal(e.Payload)
		return fmt.Sprintf("[day %d] %-18s %s", e.GameDay, e.Type, payload)
	case network.MessageError:
		return "[error] " + env.Error
	default:
		return "[" + strings.ToLower(env.Type) + "]"
	}
}

func printResults(stats *Stats, config Config, elapsed time.Duration) {
	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Println("=========================================")
	fmt.Println("CLOCK-WATCH LOAD RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Watchers:          %d\n", config.NumClients)
	fmt.Printf("Requests Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Errors:            %d\n", errs)
	if elapsed > 0 {
		fmt.Printf("Throughput:        %.2f msg/sec\n", float64(recv)/elapsed.Seconds())
	}
	fmt.Println("=========================================")
	if errs > 0 {
		os.Exit(1)
	}
}
