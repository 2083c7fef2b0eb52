package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/visionary.report/internal/monitoring"
	"github.com/banshee-data/visionary.report/internal/visionary/channels"
	"github.com/banshee-data/visionary.report/internal/visionary/records"
	"github.com/banshee-data/visionary.report/internal/visionary/transport"
)

func TestTailPrintsSummaries(t *testing.T) {
	monitoring.SetLogger(nil)

	bus := transport.NewBus()
	lis := bufconn.Listen(1 << 20)
	srv := transport.NewServer(bus, transport.ServerConfig{SubscriberBuffer: 8})
	require.NoError(t, srv.Serve(lis))
	defer srv.Stop()

	client, err := transport.Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Subscribe(ctx, "imu_data")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := bus.ConsumerCount("imu_data")
		return n == 1
	}, 2*time.Second, 5*time.Millisecond)

	for seq := uint64(1); seq <= 2; seq++ {
		bus.Publish(channels.IMU, &records.IMU{Header: records.Header{FrameID: "camera", Seq: seq}})
	}

	var out bytes.Buffer
	n, err := tail(&out, stream, "imu_data", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "imu_data seq=1 frame_id=camera")
	assert.Contains(t, lines[1], "imu_data seq=2 frame_id=camera")
}
