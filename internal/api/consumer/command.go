package consumer

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/vexdb/vexdb/internal/domain"
)

// Command ops accepted on ingestion topics.
const (
	OpUpsert           = "upsert"
	OpCreateCollection = "create_collection"
)

// Command is the JSON envelope carried on an ingestion topic.
//
//	{"op":"upsert","collection":"demo","points":[{"id":"a","vector":[1,0],"payload_json":"{}"}]}
//	{"op":"create_collection","name":"demo","dims":4,"metric":"cosine"}
type Command struct {
	Op         string         `mapstructure:"op"`
	Collection string         `mapstructure:"collection"`
	Points     []domain.Point `mapstructure:"points"`

	domain.CreateCollectionRequest `mapstructure:",squash"`
}

// decodeCommand unmarshals the envelope into a generic map first and then
// decodes it through mapstructure, so vector elements arriving as JSON
// numbers land in []float32 without a typed intermediate per op.
func decodeCommand(message []byte) (*Command, error) {
	var raw map[string]any
	if err := json.Unmarshal(message, &raw); err != nil {
		return nil, errors.Wrap(err, "unmarshal command envelope")
	}

	var cmd Command
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cmd,
		WeaklyTypedInput: true,
		DecodeHook:       float32SliceHook,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build command decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decode command")
	}
	return &cmd, nil
}

// float32SliceHook converts []any of JSON numbers into []float32.
func float32SliceHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]float32(nil)) {
		return data, nil
	}

	values, ok := data.([]any)
	if !ok {
		return data, nil
	}

	out := make([]float32, len(values))
	for i, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("vector element %d is %T, want number", i, v)
		}
		out[i] = float32(f)
	}
	return out, nil
}
