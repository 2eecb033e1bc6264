package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// counterValue sums the data points of the named Int64 counter whose
// attributes include every entry of want.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				matched := true
				for _, kv := range want {
					v, ok := dp.Attributes.Value(kv.Key)
					if !ok || v != kv.Value {
						matched = false
						break
					}
				}
				if matched {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolInvocation(ctx, "list_drive_files", StatusSuccess, 10*time.Millisecond)
	m.RecordToolInvocation(ctx, "list_drive_files", StatusSuccess, 12*time.Millisecond)
	m.RecordToolInvocation(ctx, "delete_file", StatusError, 5*time.Millisecond)

	assert.Equal(t, int64(2), counterValue(t, reader, "mcp_tool_invocations_total",
		attribute.String("tool", "list_drive_files"), attribute.String("status", StatusSuccess)))
	assert.Equal(t, int64(1), counterValue(t, reader, "mcp_tool_invocations_total",
		attribute.String("tool", "delete_file"), attribute.String("status", StatusError)))
}

func TestMetrics_RecordGoogleAPIOperation_NormalizesUnknownOperations(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationMove, StatusSuccess, time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceDrive, "files.watch", StatusSuccess, time.Millisecond)

	assert.Equal(t, int64(1), counterValue(t, reader, "google_api_operations_total", attribute.String("operation", OperationMove)))
	assert.Equal(t, int64(1), counterValue(t, reader, "google_api_operations_total", attribute.String("operation", "other")))
}

func TestMetrics_RecordOAuth(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)

	assert.Equal(t, int64(1), counterValue(t, reader, "oauth_auth_total", attribute.String("result", OAuthResultSuccess)))
	assert.Equal(t, int64(1), counterValue(t, reader, "oauth_token_refresh_total", attribute.String("result", OAuthResultFailure)))
}

func TestMetrics_RecordTransferBytes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTransferBytes(ctx, DirectionDownload, 1024)
	m.RecordTransferBytes(ctx, DirectionDownload, 0)
	m.RecordTransferBytes(ctx, DirectionUpload, 10)

	assert.Equal(t, int64(1024), counterValue(t, reader, "drive_transfer_bytes_total", attribute.String("direction", DirectionDownload)))
	assert.Equal(t, int64(10), counterValue(t, reader, "drive_transfer_bytes_total", attribute.String("direction", DirectionUpload)))
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordHTTPRequest(context.Background(), "POST", "/mcp", 429, time.Millisecond)

	assert.Equal(t, int64(1), counterValue(t, reader, "http_requests_total",
		attribute.String("path", "/mcp"), attribute.String("status", "429")))
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()
	for _, m := range []*Metrics{nil, {}} {
		m.RecordHTTPRequest(ctx, "GET", "/mcp", 200, time.Millisecond)
		m.RecordGoogleAPIOperation(ctx, ServiceDrive, OperationGet, StatusSuccess, time.Millisecond)
		m.RecordTransferBytes(ctx, DirectionUpload, 1)
		m.RecordOAuthAuth(ctx, OAuthResultSuccess)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
		m.RecordToolInvocation(ctx, "get_file_info", StatusSuccess, time.Millisecond)
	}
}

func TestIsKnownOperation(t *testing.T) {
	for _, op := range []string{OperationList, OperationSearch, OperationCreateFolder, OperationUpload,
		OperationDelete, OperationDownload, OperationRename, OperationMove, OperationGet} {
		assert.True(t, IsKnownOperation(op), op)
	}
	assert.False(t, IsKnownOperation("share"))
}
