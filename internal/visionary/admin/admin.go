// Package admin registers the bridge's debug pages on an HTTP mux.
package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"tailscale.com/tsweb"

	"github.com/banshee-data/visionary.report/internal/httputil"
	"github.com/banshee-data/visionary.report/internal/version"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
	"github.com/banshee-data/visionary.report/internal/visionary/transcode"
	"github.com/banshee-data/visionary.report/internal/visionary/transport"
)

// Status is the body of /debug/visionary.
type Status struct {
	Version    string             `json:"version"`
	GitSHA     string             `json:"git_sha"`
	Transcoder transcode.Stats    `json:"transcoder"`
	Bus        transport.BusStats `json:"bus"`
	Streams    int64              `json:"grpc_streams"`
	Uptime     string             `json:"uptime"`
}

// ChannelRow is one entry of /debug/visionary/channels.
type ChannelRow struct {
	Topic     string `json:"topic"`
	Consumers int    `json:"consumers"`
	Produced  uint64 `json:"produced"`
	Skipped   uint64 `json:"skipped"`
	Failed    uint64 `json:"failed"`
	Sent      uint64 `json:"sent"`
	Dropped   uint64 `json:"dropped"`
	Bytes     string `json:"bytes"`
}

// Sources bundles what the pages report on. Server may be nil.
type Sources struct {
	Bus        *transport.Bus
	Transcoder *transcode.Transcoder
	Server     *transport.Server
	Started    time.Time
}

// AttachAdminRoutes registers the pages under /debug/.
func AttachAdminRoutes(mux *http.ServeMux, src Sources) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("visionary", "bridge and bus statistics (JSON)", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status(src))
	})

	debug.HandleFunc("visionary/channels", "per-channel demand and output (JSON)", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, channelRows(src))
	})

	// Server-sent events, one line per record on ?topic=. The tail is a bus
	// subscriber, so opening it turns the channel on.
	debug.HandleSilentFunc("visionary/tail", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodGet) {
			return
		}
		tail(w, r, src.Bus)
	})
}

func status(src Sources) Status {
	s := Status{
		Version:    version.Version,
		GitSHA:     version.GitSHA,
		Transcoder: src.Transcoder.Stats(),
		Bus:        src.Bus.Stats(),
	}
	if src.Server != nil {
		s.Streams = src.Server.ActiveStreams()
	}
	if !src.Started.IsZero() {
		s.Uptime = time.Since(src.Started).Round(time.Second).String()
	}
	return s
}

func channelRows(src Sources) []ChannelRow {
	tstats := src.Transcoder.Stats()
	bstats := src.Bus.Stats()

	rows := make([]ChannelRow, 0, len(channels.All()))
	for _, topic := range channels.Topics() {
		consumers, _ := src.Bus.ConsumerCount(topic)
		tc := tstats.Channels[topic]
		bt := bstats.Topics[topic]
		rows = append(rows, ChannelRow{
			Topic:     topic,
			Consumers: consumers,
			Produced:  tc.Produced,
			Skipped:   tc.Skipped,
			Failed:    tc.Failed,
			Sent:      bt.Sent,
			Dropped:   bt.Dropped,
			Bytes:     humanize.Bytes(bt.Bytes),
		})
	}
	return rows
}

func tail(w http.ResponseWriter, r *http.Request, bus *transport.Bus) {
	topic := r.URL.Query().Get("topic")
	if _, ok := channels.FromTopic(topic); !ok {
		httputil.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown topic %q", topic))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	buffer := 1
	if v := r.URL.Query().Get("buffer"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			buffer = n
		}
	}
	sub, err := bus.Subscribe(topic, buffer)
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprint(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", Summary(msg)); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// Summary renders one encoded record as a single human-readable line.
func Summary(msg transport.Message) string {
	h, err := records.DecodeHeader(msg.Data)
	if err != nil {
		return fmt.Sprintf("%s undecodable (%s): %v", msg.Topic, humanize.Bytes(uint64(len(msg.Data))), err)
	}
	return fmt.Sprintf("%s seq=%d frame_id=%s stamp=%s size=%s",
		msg.Topic, h.Seq, h.FrameID, h.Stamp.UTC().Format(time.RFC3339Nano), humanize.Bytes(uint64(len(msg.Data))))
}
