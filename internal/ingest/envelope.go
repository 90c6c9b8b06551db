// Package ingest is the transport boundary: it decodes subscription
// envelopes from the log delivery service and exposes the HTTP endpoint
// that receives them.
package ingest

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/sheep333/lambda-cloudwatch-event/internal/processor"
)

// maxDecodedSize caps the decompressed payload to keep a hostile or broken
// sender from exhausting memory.
const maxDecodedSize = 16 << 20

// ErrControlMessage marks the subscription handshake payload, which carries
// no log events and is acknowledged without processing.
var ErrControlMessage = errors.New("ingest: control message")

var parserPool fastjson.ParserPool

// DecodeEnvelope unwraps one subscription delivery: an awslogs JSON wrapper
// whose data field is a base64-encoded, gzip-compressed batch payload.
func DecodeEnvelope(body []byte) (processor.Batch, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	wrapper, err := parser.ParseBytes(body)
	if err != nil {
		return processor.Batch{}, fmt.Errorf("ingest: malformed envelope JSON: %w", err)
	}
	data := wrapper.GetStringBytes("awslogs", "data")
	if data == nil {
		return processor.Batch{}, fmt.Errorf("ingest: envelope missing awslogs.data")
	}

	compressed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return processor.Batch{}, fmt.Errorf("ingest: decode base64: %w", err)
	}
	payload, err := gunzip(compressed)
	if err != nil {
		return processor.Batch{}, fmt.Errorf("ingest: decompress payload: %w", err)
	}

	return decodeBatch(payload)
}

// decodeBatch parses the decompressed batch payload.
func decodeBatch(payload []byte) (processor.Batch, error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	v, err := parser.ParseBytes(payload)
	if err != nil {
		return processor.Batch{}, fmt.Errorf("ingest: malformed batch JSON: %w", err)
	}

	if string(v.GetStringBytes("messageType")) == "CONTROL_MESSAGE" {
		return processor.Batch{}, ErrControlMessage
	}

	batch := processor.Batch{
		LogGroup: string(v.GetStringBytes("logGroup")),
		StreamID: string(v.GetStringBytes("logStream")),
	}

	events := v.GetArray("logEvents")
	batch.Events = make([]processor.Event, 0, len(events))
	for _, ev := range events {
		batch.Events = append(batch.Events, processor.Event{
			EventID:   string(ev.GetStringBytes("id")),
			Timestamp: ev.GetInt64("timestamp"),
			Message:   string(ev.GetStringBytes("message")),
		})
	}
	return batch, nil
}

func gunzip(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxDecodedSize))
}
