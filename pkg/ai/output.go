package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// maxOutputBytes caps downloaded prediction outputs.
const maxOutputBytes = 32 << 20

// extractOutputURL extracts the output URL from a prediction result
func extractOutputURL(result *types.ReplicatePredictionResponse) (string, error) {
	if url, ok := result.Output.(string); ok && url != "" {
		return url, nil
	}

	// Array output: the first entry is the image
	if outputs, ok := result.Output.([]interface{}); ok && len(outputs) > 0 {
		if url, ok := outputs[0].(string); ok && url != "" {
			return url, nil
		}
	}

	// Map output with specific keys
	if outputMap, ok := result.Output.(map[string]interface{}); ok {
		for _, key := range []string{"mask", "image", "output", "url", "file"} {
			if url, ok := outputMap[key].(string); ok && url != "" {
				return url, nil
			}
		}
	}

	return "", Error{
		Code:    CodeNoOutput,
		Message: "no output URL in prediction result",
		Details: map[string]interface{}{"prediction_id": result.ID},
	}
}

// toDataURL turns a prediction output into a data URL, downloading it when
// it is a remote file.
func toDataURL(ctx context.Context, httpClient *http.Client, url string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", Error{Code: CodeDownloadFailed, Message: "failed to download output", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", Error{
			Code:    CodeDownloadFailed,
			Message: fmt.Sprintf("failed to download output: status %d", resp.StatusCode),
			Details: map[string]interface{}{"url": url},
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputBytes+1))
	if err != nil {
		return "", Error{Code: CodeDownloadFailed, Message: "failed to read output", Err: err}
	}
	if len(data) > maxOutputBytes {
		return "", Error{Code: CodeDownloadFailed, Message: "output too large", Details: map[string]interface{}{"url": url}}
	}
	return encodeDataURL(data)
}

// encodeDataURL sniffs the content type of data and wraps it in a data URL.
func encodeDataURL(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", Error{
			Code:    CodeNoOutput,
			Message: fmt.Sprintf("output is %s, not an image", mt.String()),
		}
	}
	return fmt.Sprintf("data:%s;base64,%s", mt.String(), base64.StdEncoding.EncodeToString(data)), nil
}

// decodeDataURL returns the payload of a base64 data URL.
func decodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
		return nil, fmt.Errorf("invalid base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}
