package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/annel0/burrow/internal/api"
	"github.com/annel0/burrow/internal/field"
)

const defaultServerAddr = "http://localhost:8088"

type rowsResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    []field.Snapshot `json:"data"`
}

type sessionResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    api.SessionInfo `json:"data"`
}

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "REST API address")
		command    = flag.String("cmd", "top", "Command: top, session, storages")
		kind       = flag.String("kind", "", "Field kind filter: farm, underground")
		limit      = flag.Int("limit", 0, "Show only N most urgent fields (0 = all)")
		interval   = flag.Duration("interval", 2*time.Second, "Refresh interval for -follow")
		follow     = flag.Bool("follow", false, "Refresh until interrupted")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(*serverAddr, "/")

	once := func() error {
		switch *command {
		case "top":
			rows, err := fetchFields(ctx, client, base, *kind)
			if err != nil {
				return err
			}
			return renderTop(os.Stdout, rows, *limit)
		case "storages":
			var resp rowsResponse
			if err := getJSON(ctx, client, base+"/api/storages", &resp); err != nil {
				return err
			}
			return renderTop(os.Stdout, resp.Data, 0)
		case "session":
			var resp sessionResponse
			if err := getJSON(ctx, client, base+"/api/session", &resp); err != nil {
				return err
			}
			return renderSession(os.Stdout, resp.Data)
		default:
			return fmt.Errorf("unknown command %q", *command)
		}
	}

	if !*follow {
		if err := once(); err != nil {
			log.Fatalf("❌ %s failed: %v", *command, err)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		fmt.Print("\033[H\033[2J")
		fmt.Printf("burrow %s @ %s  (%s)\n\n", *command, base, time.Now().Format(time.TimeOnly))
		if err := once(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetchFields(ctx context.Context, client *http.Client, base, kind string) ([]field.Snapshot, error) {
	endpoint := base + "/api/fields"
	if kind != "" {
		endpoint += "?kind=" + url.QueryEscape(kind)
	}
	var resp rowsResponse
	if err := getJSON(ctx, client, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s: %s %s", endpoint, res.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// renderTop печатает строки в порядке, в котором их отдал сервер
func renderTop(w io.Writer, rows []field.Snapshot, limit int) error {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATE\tPRIORITY\tLINKED")
	for _, row := range rows {
		linked := "-"
		if row.Linked != 0 {
			linked = fmt.Sprintf("%d", row.Linked)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", row.ID, row.Kind, row.State, row.Priority, linked)
	}
	return tw.Flush()
}

func renderSession(w io.Writer, s api.SessionInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "mode\t%s\n", s.Mode)
	fmt.Fprintf(tw, "node\t%s\n", s.NodeID)
	fmt.Fprintf(tw, "grants\t%d\n", s.PendingGrants)
	fmt.Fprintf(tw, "inbox\t%d\n", s.RelayPending)
	fmt.Fprintf(tw, "clock\t%s\n", time.Duration(s.ClockMS)*time.Millisecond)
	fmt.Fprintf(tw, "scheduled\t%d\n", s.Scheduled)
	fmt.Fprintf(tw, "uptime\t%s\n", s.Process.Uptime)
	fmt.Fprintf(tw, "memory\t%.1f MB\n", s.Process.MemoryMB)
	fmt.Fprintf(tw, "cpu\t%.1f%%\n", s.Process.CPUPercent)
	return tw.Flush()
}
