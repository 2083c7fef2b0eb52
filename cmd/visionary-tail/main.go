// Command visionary-tail subscribes to one bridge topic over gRPC and prints
// a summary line per record. While it runs, the bridge produces that topic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/visionary.report/internal/version"
	"github.com/banshee-data/visionary.report/internal/visionary/admin"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/transport"
)

var (
	addr        = flag.String("addr", "localhost:50061", "Bridge gRPC address")
	topic       = flag.String("topic", "camera_info", "Topic to subscribe to: "+strings.Join(channels.Topics(), ", "))
	count       = flag.Int("n", 0, "Exit after this many records (0 = run until interrupted)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// tail prints up to n summaries from stream to w. n <= 0 means unbounded.
func tail(w io.Writer, stream *transport.Stream, name string, n int) (int, error) {
	seen := 0
	for n <= 0 || seen < n {
		data, err := stream.Recv()
		if err != nil {
			return seen, err
		}
		seen++
		fmt.Fprintln(w, admin.Summary(transport.Message{Topic: name, Data: data}))
	}
	return seen, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("visionary-tail"))
		return
	}
	if _, ok := channels.FromTopic(*topic); !ok {
		log.Fatalf("unknown topic %q (want one of %s)", *topic, strings.Join(channels.Topics(), ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := transport.Dial(*addr)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	stream, err := client.Subscribe(ctx, *topic)
	if err != nil {
		log.Fatalf("failed to subscribe: %v", err)
	}

	n, err := tail(os.Stdout, stream, *topic, *count)
	switch {
	case err == nil, errors.Is(err, io.EOF), status.Code(err) == codes.Canceled:
	default:
		log.Printf("stream ended: %v", err)
	}
	log.Printf("received %d records on %s", n, *topic)
}
