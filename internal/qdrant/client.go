// Package qdrant wraps the gRPC client for the optional annotated-example
// index. The rest of the pipeline works without it; everything here is only
// reached when a Qdrant endpoint is configured.
package qdrant

import (
	"context"
	"errors"
	"net"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/jchiru21/tech-debt-assassin/internal/config"
)

type Client struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
}

// NewClient dials the endpoint named by QDRANT_URL (host, host:port or URL;
// defaults to localhost:6334).
func NewClient() (*Client, error) {
	host, port, err := parseAddress(config.Get("QDRANT_URL", "qdrant_url"))
	if err != nil {
		return nil, err
	}

	cfg := &qdrant.Config{Host: host, Port: port}
	if apiKey := config.Get("QDRANT_API_KEY", "qdrant_api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	grpcClient, err := qdrant.NewGrpcClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		points:      grpcClient.Points(),
		collections: grpcClient.Collections(),
		conn:        grpcClient.Conn(),
	}, nil
}

func parseAddress(raw string) (string, int, error) {
	const (
		defaultHost = "localhost"
		defaultPort = 6334
	)

	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return defaultHost, defaultPort, nil
	}

	if strings.Contains(endpoint, "://") {
		parsed, err := neturl.Parse(endpoint)
		if err != nil {
			return "", 0, err
		}
		if parsed.Host == "" {
			return defaultHost, defaultPort, nil
		}
		endpoint = parsed.Host
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && strings.Contains(addrErr.Err, "missing port") {
			return endpoint, defaultPort, nil
		}
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = defaultHost
	}
	return host, port, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// EnsureCollection creates the collection if needed, recreating it when the
// existing vector dimension does not match.
func (c *Client) EnsureCollection(name string, vectorSize uint64) error {
	ctx := context.Background()

	info, err := c.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: name})
	if err == nil {
		params := info.GetResult().GetConfig().GetParams()
		if params != nil && params.GetVectorsConfig().GetParams().GetSize() == vectorSize {
			return nil
		}
		if _, err := c.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: name}); err != nil {
			return err
		}
	}

	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     vectorSize,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	return err
}

func (c *Client) DeleteCollection(name string) error {
	_, err := c.collections.Delete(context.Background(), &qdrant.DeleteCollection{CollectionName: name})
	return err
}

func (c *Client) Upsert(collection string, points []*qdrant.PointStruct) error {
	wait := true
	_, err := c.points.Upsert(context.Background(), &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           &wait,
	})
	return err
}

func (c *Client) Search(collection string, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	resp, err := c.points.Search(context.Background(), &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          limit,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Scroll pages through all points of a collection; pass the returned offset
// back in to fetch the next batch, nil offset means the end was reached.
func (c *Client) Scroll(collection string, limit uint32, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
	resp, err := c.points.Scroll(context.Background(), &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		Offset:         offset,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return resp.Result, resp.NextPageOffset, nil
}

// DeleteByFilePath removes every point indexed for one source file, used
// before re-indexing a modified file.
func (c *Client) DeleteByFilePath(collection, filePath string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "file_path",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: filePath},
						},
					},
				},
			},
		},
	}
	_, err := c.points.Delete(context.Background(), &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	return err
}

// StringPayload extracts a string field from a point payload.
func StringPayload(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

// IntPayload extracts an integer field from a point payload.
func IntPayload(payload map[string]*qdrant.Value, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	if n, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
		return int(n.IntegerValue)
	}
	return 0
}

// MapToPayload converts plain values into the qdrant payload representation.
func MapToPayload(m map[string]interface{}) map[string]*qdrant.Value {
	result := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			result[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			result[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case bool:
			result[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		case float64:
			result[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		}
	}
	return result
}
