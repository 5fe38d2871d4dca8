package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb/geojson"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/config"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
)

// batchSize bounds the number of messages handed to one WriteMessages call.
const batchSize = 1000

// Writer publishes one message per classified reach to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// ReachMessage is the JSON value of a published reach.
type ReachMessage struct {
	RunID            string            `json:"run_id"`
	Index            int               `json:"index"`
	Classification   string            `json:"classification"`
	SpatialReference string            `json:"spatial_reference,omitempty"`
	Geometry         *geojson.Geometry `json:"geometry"`
}

// Load serializes the reaches in order and publishes them in batches.
func (w *Writer) Load(ctx context.Context, out domain.ClassifiedNetwork) error {
	reaches := out.Reaches.Reaches()
	for start := 0; start < len(reaches); start += batchSize {
		end := min(start+batchSize, len(reaches))
		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range reaches[start:end] {
			msg, err := serializeToMessage(out, r)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish reaches %d-%d: %w", start, end-1, err)
		}
		w.logger.Debug("published reaches", "from", start, "to", end-1)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a reach into a Kafka message keyed by index.
func serializeToMessage(out domain.ClassifiedNetwork, r domain.Reach) (kafkago.Message, error) {
	data, err := json.Marshal(ReachMessage{
		RunID:            out.RunID,
		Index:            r.Index(),
		Classification:   r.Classification().String(),
		SpatialReference: out.SpatialReference.Name,
		Geometry:         geojson.NewGeometry(r.Geometry()),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize reach %d: %w", r.Index(), err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(r.Index())),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "classification", Value: []byte(r.Classification())},
			{Key: "run_id", Value: []byte(out.RunID)},
		},
	}, nil
}
