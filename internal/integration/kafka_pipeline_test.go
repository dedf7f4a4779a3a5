//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/adapter/kafka"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/slmpd"
	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/couchcryptid/police-calls-etl/internal/pipeline"
	"github.com/couchcryptid/police-calls-etl/internal/zones"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-police-calls"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("police-calls"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start kafka container")

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func sourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	page, err := os.ReadFile(filepath.Join("..", "adapter", "slmpd", "testdata", "calls.html"))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type publishedCall struct {
	Key     string
	Store   string
	Payload map[string]string
}

func readPublished(ctx context.Context, t *testing.T, broker string, n int) []publishedCall {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer r.Close()

	out := make([]publishedCall, 0, n)
	for len(out) < n {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := r.ReadMessage(readCtx)
		cancel()
		require.NoError(t, err, "read published call %d", len(out)+1)

		pc := publishedCall{Key: string(msg.Key)}
		for _, h := range msg.Headers {
			if h.Key == "store" {
				pc.Store = string(h.Value)
			}
		}
		require.NoError(t, json.Unmarshal(msg.Value, &pc.Payload))
		out = append(out, pc)
	}
	return out
}

// TestRunPublishesAppendedCalls drives a full run: fetch from a local copy of
// the page, classify, ingest into memory stores and publish to Kafka.
func TestRunPublishesAppendedCalls(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	src := sourceServer(t)

	cfg := &config.Config{
		SourceURL:       src.URL,
		SourceUserAgent: config.DefaultUserAgent,
		FetchTimeout:    5 * time.Second,
		KafkaBrokers:    []string{broker},
		KafkaTopic:      testTopic,
	}
	zs, err := zones.Defaults()
	require.NoError(t, err)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, logger, metrics)
	t.Cleanup(func() { _ = writer.Close() })

	mem := ingest.NewMemory()
	runner := pipeline.New(
		slmpd.NewClient(cfg, logger, metrics),
		ingest.New(mem, logger, metrics),
		pipeline.Targets("STLPoliceCalls", zs),
		logger, metrics,
		pipeline.WithPublisher(writer),
	)

	rep, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeOK, rep.Outcome)
	assert.Equal(t, 9, rep.Appended(), "3 calls into the all-calls store and each zone store")

	published := readPublished(ctx, t, broker, 9)
	byStore := map[string]int{}
	for _, pc := range published {
		byStore[pc.Store]++
		assert.Equal(t, pc.Key, pc.Payload["Event"])
	}
	assert.Equal(t, map[string]int{
		"STLPoliceCalls":         3,
		"TowerGroveSouthCalls":   3,
		"TowerGroveHeightsCalls": 3,
	}, byStore)

	// A second run over the same page appends and publishes nothing.
	rep, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Appended())
	assert.InDelta(t, 9, testutil.ToFloat64(metrics.RecordsPublished), 0)
}
