package domain

import (
	"strings"
)

// ============================================================================
// 相似度度量
// ============================================================================

// Metric 集合的相似度度量
type Metric int

const (
	MetricCosine Metric = iota
	MetricDot
	MetricEuclidean
)

// String returns the canonical wire spelling of the metric.
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	case MetricEuclidean:
		return "euclidean"
	default:
		return "unknown"
	}
}

// ParseMetric maps a wire metric name to a Metric. Unrecognized names are an
// InvalidArgument error; there is no default metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine":
		return MetricCosine, nil
	case "dot", "ip", "inner_product":
		return MetricDot, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, InvalidArgumentf("unknown metric %q", s)
	}
}

// ============================================================================
// 点与过滤器
// ============================================================================

// Point 向量点：id + 定长向量 + 不透明 payload（JSON 字符串，存储层不解析）
type Point struct {
	ID          string    `json:"id" mapstructure:"id"`
	Vector      []float32 `json:"vector" mapstructure:"vector"`
	PayloadJSON string    `json:"payload_json" mapstructure:"payload_json"`
}

// Filter payload 顶层字段等值过滤，多个 Filter 之间取 AND
type Filter struct {
	Key    string `json:"key" mapstructure:"key"`
	Equals string `json:"equals" mapstructure:"equals"`
}

// Hit 单条查询结果
type Hit struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	PayloadJSON string  `json:"payload_json,omitempty"`
}

// CollectionInfo describes a collection for list/describe responses.
type CollectionInfo struct {
	Name   string `json:"name"`
	Dims   int    `json:"dims"`
	Metric string `json:"metric"`
	Points int    `json:"points"`
}

// ============================================================================
// 请求/响应
// ============================================================================

// CreateCollectionRequest creates a named collection with fixed dims and metric.
type CreateCollectionRequest struct {
	Name   string `json:"name" mapstructure:"name"`
	Dims   int    `json:"dims" mapstructure:"dims"`
	Metric string `json:"metric" mapstructure:"metric"`
}

// UpsertRequest inserts or replaces points in one collection. Points with an
// empty id get a generated one.
type UpsertRequest struct {
	Points []Point `json:"points" mapstructure:"points"`
}

// UpsertResponse reports how many points were applied.
type UpsertResponse struct {
	Upserted int64 `json:"upserted"`
}

// DeletePointsRequest removes points by id. Unknown ids are ignored.
type DeletePointsRequest struct {
	IDs []string `json:"ids"`
}

// DeletePointsResponse reports how many points were removed.
type DeletePointsResponse struct {
	Deleted int64 `json:"deleted"`
}

// QueryRequest is a nearest-neighbor query against one collection.
// MetricOverride, when non-empty, scores this query with a different metric
// than the collection default.
type QueryRequest struct {
	Vector         []float32 `json:"vector"`
	TopK           int       `json:"top_k"`
	WithPayloads   bool      `json:"with_payloads"`
	Filters        []Filter  `json:"filters,omitempty"`
	MetricOverride string    `json:"metric_override,omitempty"`
}

// QueryResponse carries ranked hits, best first.
type QueryResponse struct {
	Hits []Hit `json:"hits"`
}

// PingResponse echoes the caller's message.
type PingResponse struct {
	Message string `json:"message"`
}

// Validate checks the request shape that does not depend on registry state.
func (r *CreateCollectionRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return InvalidArgumentf("collection name is required")
	}
	if r.Dims <= 0 {
		return InvalidArgumentf("dims must be greater than zero")
	}
	if _, err := ParseMetric(r.Metric); err != nil {
		return err
	}
	return nil
}
