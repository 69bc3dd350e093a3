package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	t.Run("canonical names", func(t *testing.T) {
		for name, want := range map[string]Metric{
			"cosine":    MetricCosine,
			"dot":       MetricDot,
			"euclidean": MetricEuclidean,
		} {
			got, err := ParseMetric(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("alternate spellings", func(t *testing.T) {
		for name, want := range map[string]Metric{
			"ip":            MetricDot,
			"inner_product": MetricDot,
			"l2":            MetricEuclidean,
			"Cosine":        MetricCosine,
			" COSINE ":      MetricCosine,
		} {
			got, err := ParseMetric(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("unknown metric is invalid argument", func(t *testing.T) {
		_, err := ParseMetric("manhattan")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("empty metric is invalid argument", func(t *testing.T) {
		_, err := ParseMetric("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("string round trip", func(t *testing.T) {
		for _, m := range []Metric{MetricCosine, MetricDot, MetricEuclidean} {
			parsed, err := ParseMetric(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, parsed)
		}
	})
}

func TestCreateCollectionRequestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := CreateCollectionRequest{Name: "demo", Dims: 4, Metric: "cosine"}
		assert.NoError(t, req.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		req := CreateCollectionRequest{Name: "  ", Dims: 4, Metric: "cosine"}
		assert.True(t, errors.Is(req.Validate(), ErrInvalidArgument))
	})

	t.Run("non positive dims", func(t *testing.T) {
		for _, dims := range []int{0, -1} {
			req := CreateCollectionRequest{Name: "demo", Dims: dims, Metric: "cosine"}
			assert.True(t, errors.Is(req.Validate(), ErrInvalidArgument))
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		req := CreateCollectionRequest{Name: "demo", Dims: 4, Metric: "hamming"}
		assert.True(t, errors.Is(req.Validate(), ErrInvalidArgument))
	})
}

func TestCode(t *testing.T) {
	assert.Equal(t, "ok", Code(nil))
	assert.Equal(t, "invalid_argument", Code(InvalidArgumentf("bad dims")))
	assert.Equal(t, "not_found", Code(NotFoundf("collection %q", "demo")))
	assert.Equal(t, "already_exists", Code(AlreadyExistsf("collection %q", "demo")))
	assert.Equal(t, "internal", Code(Internalf("boom")))
	assert.Equal(t, "internal", Code(errors.New("unclassified")))

	t.Run("wrapped errors keep their code", func(t *testing.T) {
		err := errors.WithMessage(NotFoundf("collection %q", "demo"), "query")
		assert.Equal(t, "not_found", Code(err))
	})
}
