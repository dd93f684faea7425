package tools

import "context"

// MetricsPublisher pushes one named value to the metrics collaborator.
type MetricsPublisher interface {
	FireMetric(ctx context.Context, name string, value float64) error
}

type MetricsClient struct {
	*Client
}

func NewMetricsClient(c *Client) *MetricsClient {
	return &MetricsClient{Client: c}
}

func (c *MetricsClient) FireMetric(ctx context.Context, name string, value float64) error {
	return c.post(ctx, "metrics/", map[string]float64{name: value}, nil)
}
