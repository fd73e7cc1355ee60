//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/adapter/kafka"
	"github.com/couchcryptid/sipsa-price-map/internal/config"
	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	"github.com/couchcryptid/sipsa-price-map/internal/snapshot"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-city-prices"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("sipsa-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
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
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
}

type publishedCity struct {
	Group   domain.CityGroup
	Key     string
	Headers map[string]string
}

func readCity(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedCity {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var group domain.CityGroup
	require.NoError(t, json.Unmarshal(msg.Value, &group), "unmarshal sink message")
	return publishedCity{Group: group, Key: string(msg.Key), Headers: headers}
}

// TestPipelineEndToEnd runs snapshot file → pipeline → file + Kafka against a
// real broker and verifies one message per city.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	dir := t.TempDir()
	input := filepath.Join(dir, "promediosSipsaCiudad.json")
	output := filepath.Join(dir, "dane_sipsa_data.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"FechaCaptura": "2025-06-01", "NombreCiudad": "Bogotá, D.C.", "CodigoProducto": 1, "NombreProducto": "Papa", "PrecioPromedio": 1000},
		{"FechaCaptura": "2025-06-02", "NombreCiudad": "Medellín", "CodigoProducto": 1, "NombreProducto": "Papa", "PrecioPromedio": 1100},
		{"fechaCaptura": "2025-06-03", "ciudad": "Cali", "codProducto": 2, "producto": "Tomate", "precioPromedio": 900}
	]`), 0o600))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	sel := domain.Selector{WindowDays: domain.DefaultWindowDays, Parser: domain.DefaultTimeParser()}
	p := pipeline.New(snapshot.Source{Path: input}, sel, domain.NewResolver(nil, nil, discardLogger()),
		[]pipeline.NamedLoader{
			{Name: "file", Loader: snapshot.Sink{Path: output}},
			{Name: "kafka", Loader: writer},
		},
		discardLogger(), observability.NewMetricsForTesting())

	summary, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Cities, 3)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]publishedCity, 3)
	for range 3 {
		pc := readCity(ctx, t, consumer)
		got[pc.Key] = pc
	}

	for _, want := range summary.Cities {
		pc, ok := got[want.City]
		require.True(t, ok, "missing message for %s", want.City)
		assert.Equal(t, want, pc.Group)
		assert.Equal(t, "DANE SIPSA", pc.Headers["source"])
		ts, err := time.Parse(time.RFC3339, pc.Headers["generated_at"])
		require.NoError(t, err, "generated_at should be valid RFC3339")
		assert.True(t, ts.Equal(now))
	}

	written, err := snapshot.ReadSummary(output)
	require.NoError(t, err)
	assert.Equal(t, summary.Cities, written.Cities)
}
