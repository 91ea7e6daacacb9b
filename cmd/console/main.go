package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"smart-energy/internal/display"
	"smart-energy/internal/feed"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Terminal viewer for the display feed
func main() {
	var url string
	flag.StringVar(&url, "url", "ws://127.0.0.1:8080/ws", "display feed websocket URL")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	fmt.Println("🔋 Smart Energy Console")
	fmt.Println("=======================")
	fmt.Println()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		logger.Errorf("❌ Unable to reach the display feed at %s: %v", url, err)
		logger.Info("💡 Start the simulator first: go run ./cmd")
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("✅ Connected to %s\n", url)
	showHelp()

	// gorilla allows one concurrent writer per connection
	var writeMutex sync.Mutex
	send := func(msg feed.Message) error {
		writeMutex.Lock()
		defer writeMutex.Unlock()
		return conn.WriteJSON(msg)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg feed.Message
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Errorf("Feed closed: %v", err)
				}
				return
			}
			if msg.Type != feed.MessageSnapshot || msg.Snapshot == nil {
				continue
			}
			fmt.Println()
			if err := display.Render(os.Stdout, *msg.Snapshot); err != nil {
				logger.Errorf("Failed to render snapshot: %v", err)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-done:
			fmt.Println("👋 Feed disconnected")
			return
		case input, ok := <-lines:
			if !ok {
				return
			}
			switch input {
			case "":
			case "quit", "q":
				writeMutex.Lock()
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMutex.Unlock()
				fmt.Println("👋 Bye!")
				return
			case "refresh", "r":
				if err := send(feed.Message{Type: feed.MessageRefresh}); err != nil {
					logger.Errorf("Failed to request refresh: %v", err)
				}
			case "help", "h":
				showHelp()
			default:
				fmt.Printf("❓ Unknown command %q, type 'help'\n", input)
			}
		}
	}
}

func showHelp() {
	fmt.Println()
	fmt.Println("🎮 Commands:")
	fmt.Println("   refresh, r   - Republish every reading")
	fmt.Println("   help, h      - Show this help")
	fmt.Println("   quit, q      - Quit")
	fmt.Println()
}
