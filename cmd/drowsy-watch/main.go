// drowsy-watch - follows a running drowsy monitor over its websocket feed
// and prints alert transitions to the terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-drowsy/internal/httpc"
	"github.com/teslashibe/go-drowsy/internal/log"
	"github.com/teslashibe/go-drowsy/pkg/drowsiness"
	"github.com/teslashibe/go-drowsy/pkg/episodes"
	"github.com/teslashibe/go-drowsy/pkg/hub"
	"github.com/teslashibe/go-drowsy/pkg/monitor"
)

const retryDelay = 2 * time.Second

func main() {
	addr := flag.String("addr", "localhost:8080", "drowsy dashboard host:port")
	verbose := flag.Bool("v", false, "Print every status update, not just transitions")
	preset := flag.String("preset", "", "Switch the monitor to a named preset before watching")
	flag.Parse()

	log.Init(os.Getenv("LOG_LEVEL"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := "http://" + *addr + "/api"
	if *preset != "" {
		if err := httpc.PostJSON(ctx, api+"/presets/"+url.PathEscape(*preset), nil, nil); err != nil {
			fmt.Fprintf(os.Stderr, "drowsy-watch: apply preset: %v\n", err)
			os.Exit(1)
		}
	}
	var cfg drowsiness.Config
	if err := httpc.GetJSON(ctx, api+"/config", &cfg); err != nil {
		log.Warn("could not read monitor config", "error", err)
	} else {
		printConfig(os.Stdout, cfg)
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/status"}
	w := &watcher{out: os.Stdout, verbose: *verbose}

	for {
		err := w.follow(ctx, u.String())
		if ctx.Err() != nil {
			return
		}
		log.Warn("connection lost, retrying", "url", u.String(), "error", err, "in", retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

type watcher struct {
	out     io.Writer
	verbose bool
	last    *drowsiness.State
}

// follow reads envelopes until the connection drops or ctx is cancelled.
func (w *watcher) follow(ctx context.Context, wsURL string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Info("connected", "url", wsURL)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := w.handle(data); err != nil {
			log.Debug("ignoring message", "error", err)
		}
	}
}

func (w *watcher) handle(data []byte) error {
	var env hub.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.Type {
	case hub.EventStatus:
		var snap monitor.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return err
		}
		w.status(snap)

	case hub.EventAlert:
		var snap monitor.Snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s  DROWSINESS ALERT  ear=%.3f closed_frames=%d\n",
			snap.Timestamp.Format("15:04:05.000"), snap.EAR, snap.ClosedFrames)

	case hub.EventRecover:
		var ep episodes.Episode
		if err := json.Unmarshal(env.Data, &ep); err != nil {
			return err
		}
		fmt.Fprintf(w.out, "%s  awake again after %s (%d frames, min ear %.3f)\n",
			ep.EndedAt.Format("15:04:05.000"), ep.Duration().Round(time.Millisecond), ep.Frames, ep.MinEAR)

	case hub.EventConfig:
		var cfg drowsiness.Config
		if err := json.Unmarshal(env.Data, &cfg); err != nil {
			return err
		}
		printConfig(w.out, cfg)
	}
	return nil
}

func printConfig(out io.Writer, cfg drowsiness.Config) {
	fmt.Fprintf(out, "config: threshold=%.2f frames_required=%d missing_face=%s\n",
		cfg.Threshold, cfg.FramesRequired, cfg.MissingFace)
}

func (w *watcher) status(snap monitor.Snapshot) {
	changed := w.last == nil || *w.last != snap.State
	st := snap.State
	w.last = &st

	if !changed && !w.verbose {
		return
	}
	ear := "-"
	if snap.Measured {
		ear = fmt.Sprintf("%.3f", snap.EAR)
	} else if snap.Skip != drowsiness.SkipNone {
		ear = string(snap.Skip)
	}
	fmt.Fprintf(w.out, "%s  #%d %-6s ear=%s closed=%d/%d\n",
		snap.Timestamp.Format("15:04:05.000"), snap.Seq, snap.State, ear,
		snap.ClosedFrames, snap.FramesRequired)
}
