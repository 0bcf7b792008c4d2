package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newFarmWatchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch [owner]",
		Short: "Stream events from a farm",
		Long: `Connect to the farm's event stream and print events as they happen.

Events:
  - connected: stream opened
  - player_initialized: farm created
  - planted: a kind was planted
  - harvested: a plot was harvested
  - updated: farm was touched

Press Ctrl+C to disconnect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := farmOwner(args)
			if err != nil {
				return err
			}
			return streamEvents(owner, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent is one event read from the stream
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

// sseReader splits a text/event-stream body into events. Comment lines
// (keepalives) are skipped.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next named event, or io.EOF when the stream ends
func (s *sseReader) Next() (name, data string, err error) {
	var lines []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			lines = append(lines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if name != "" {
				return name, strings.Join(lines, "\n"), nil
			}
			lines = nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}
	return "", "", io.EOF
}

func streamEvents(owner string, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := client.NewRequest(http.MethodGet, "/api/v1/farms/"+url.PathEscape(owner)+"/events", nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream stays open until one side leaves, so no client timeout
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if !jsonOutput {
		fmt.Printf("Watching farm %s\n", owner)
	}

	stream := newSSEReader(resp.Body)
	for {
		name, data, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("stream error: %w", err)
			}
			break
		}
		printEvent(SSEEvent{Time: time.Now(), Event: name, Data: data}, jsonOutput)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

func printEvent(evt SSEEvent, jsonOutput bool) {
	if jsonOutput {
		line, _ := json.Marshal(evt)
		fmt.Println(string(line))
		return
	}
	fmt.Printf("[%s] %s\n", evt.Time.Format("15:04:05"), describeEvent(evt.Event, evt.Data))
}

// describeEvent renders a farm event as one human-readable line
func describeEvent(name, data string) string {
	var e Event
	if err := json.Unmarshal([]byte(data), &e); err != nil || e.Type == "" {
		return name
	}

	var p struct {
		Kind      string `json:"kind"`
		Cost      uint64 `json:"cost"`
		Reward    uint64 `json:"reward"`
		Gold      uint64 `json:"gold"`
		GoldAfter uint64 `json:"gold_after"`
	}
	_ = json.Unmarshal(e.Payload, &p)

	by := ""
	if e.Signer != "" && e.Signer != e.Owner {
		by = " by " + e.Signer
	}

	switch e.Type {
	case "player_initialized":
		return fmt.Sprintf("farm created with %d gold", p.Gold)
	case "planted":
		return fmt.Sprintf("planted %s for %d gold%s, %d left", p.Kind, p.Cost, by, p.GoldAfter)
	case "harvested":
		return fmt.Sprintf("harvested %s for %d gold%s, now %d", p.Kind, p.Reward, by, p.GoldAfter)
	default:
		return e.Type + by
	}
}
