package churn

import (
	"bytes"
	"context"
	"strings"

	xhttp "ChurnScope/pkg/http"
)

// FetchArtifact downloads an artifact over HTTP(S) and checks it.
func FetchArtifact(ctx context.Context, client *xhttp.Client, url string) (*Artifact, error) {
	var body []byte
	err := client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
	}, &body)
	if err != nil {
		return nil, modelLoadError("fetch %s: %v", url, err)
	}
	return ReadArtifact(bytes.NewReader(body))
}

// OpenArtifact loads from a URL when src looks like one, else from a file.
func OpenArtifact(ctx context.Context, client *xhttp.Client, src string) (*Artifact, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if client == nil {
			client = xhttp.NewClient()
		}
		return FetchArtifact(ctx, client, src)
	}
	return LoadArtifact(src)
}
