// Package apicurio implements the Schema Artifact Client (C2): a narrow
// REST client over the Apicurio-style registry's versioned-artifact API.
// No pack example wires this bespoke (group, artifactId, version) wire
// shape, so this client is written directly against net/http +
// encoding/json rather than adapted from an example client.
package apicurio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
	"github.com/io-pipeline/platform-registration-service/internal/workerpool"
)

// ArtifactResult is the outcome of CreateOrUpdate.
type ArtifactResult struct {
	ArtifactID string
	GlobalID   int64
	Version    string
}

// Client talks to the artifact registry. Every call is dispatched onto a
// bounded worker pool because the registry's HTTP transport blocks.
type Client struct {
	baseURL string
	groupID string
	http    *http.Client
	pool    *workerpool.Pool
	logger  config.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg *config.Config, logger config.Logger, pool *workerpool.Pool) *Client {
	return &Client{
		baseURL: cfg.Apicurio.URL,
		groupID: cfg.Apicurio.GroupID,
		http:    &http.Client{Timeout: 10 * time.Second},
		pool:    pool,
		logger:  logger,
	}
}

func versionOrDefault(version string) string {
	if version == "" {
		return "1"
	}
	return version
}

// CreateOrUpdate creates or finds a version of serviceName's config artifact.
// ifExists=FIND_OR_CREATE_VERSION makes the call idempotent: identical
// content for an existing (artifactId, version) returns the same artifact;
// different content under a new version creates a new version.
func (c *Client) CreateOrUpdate(ctx context.Context, serviceName, version, jsonSchema string) (*ArtifactResult, error) {
	artifactID := model.ArtifactID(serviceName, version)

	type contentBody struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
	}
	type firstVersion struct {
		Content contentBody `json:"content"`
		Version string      `json:"version"`
	}
	reqBody := struct {
		ArtifactID   string       `json:"artifactId"`
		ArtifactType string       `json:"artifactType"`
		FirstVersion firstVersion `json:"firstVersion"`
	}{
		ArtifactID:   artifactID,
		ArtifactType: "JSON",
		FirstVersion: firstVersion{
			Content: contentBody{Content: jsonSchema, ContentType: "application/json"},
			Version: versionOrDefault(version),
		},
	}

	var result ArtifactResult
	var callErr error
	err := c.pool.Submit(ctx, func() {
		payload, marshalErr := json.Marshal(reqBody)
		if marshalErr != nil {
			callErr = marshalErr
			return
		}

		url := fmt.Sprintf("%s/groups/%s/artifacts?ifExists=FIND_OR_CREATE_VERSION", c.baseURL, c.groupID)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if reqErr != nil {
			callErr = reqErr
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			callErr = doErr
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			callErr = fmt.Errorf("artifact registry返回状态码 %d", resp.StatusCode)
			return
		}

		var decoded struct {
			GlobalID int64 `json:"globalId"`
			Version  struct {
				Version string `json:"version"`
			} `json:"version"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
			callErr = decodeErr
			return
		}

		result = ArtifactResult{
			ArtifactID: artifactID,
			GlobalID:   decoded.GlobalID,
			Version:    decoded.Version.Version,
		}
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		c.logger.Error("创建或更新制品失败", zap.String("artifactId", artifactID), zap.Error(callErr))
		return nil, callErr
	}
	return &result, nil
}

// GetSchema returns the raw content of serviceName's config artifact at
// version, where version "latest" (or empty) resolves to the newest.
func (c *Client) GetSchema(ctx context.Context, serviceName, version string) (string, error) {
	artifactID := model.ArtifactID(serviceName, version)
	v := version
	if v == "" || v == "latest" {
		artifactID = model.ArtifactID(serviceName, "")
		v = "latest"
	}

	var content string
	var callErr error
	err := c.pool.Submit(ctx, func() {
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s/versions/%s/content", c.baseURL, c.groupID, artifactID, v)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			callErr = reqErr
			return
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			callErr = doErr
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			callErr = fmt.Errorf("artifact registry返回状态码 %d", resp.StatusCode)
			return
		}

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			callErr = readErr
			return
		}
		content = string(body)
	})
	if err != nil {
		return "", err
	}
	if callErr != nil {
		c.logger.Error("读取制品失败", zap.String("artifactId", artifactID), zap.Error(callErr))
		return "", callErr
	}
	return content, nil
}

// GetArtifactMetadata returns artifact-level metadata, or nil if it does
// not exist.
func (c *Client) GetArtifactMetadata(ctx context.Context, serviceName string) (map[string]any, error) {
	artifactID := model.ArtifactID(serviceName, "")

	var meta map[string]any
	var callErr error
	err := c.pool.Submit(ctx, func() {
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s", c.baseURL, c.groupID, artifactID)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			callErr = reqErr
			return
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			callErr = doErr
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return
		}
		if resp.StatusCode >= 300 {
			callErr = fmt.Errorf("artifact registry返回状态码 %d", resp.StatusCode)
			return
		}

		if decodeErr := json.NewDecoder(resp.Body).Decode(&meta); decodeErr != nil {
			callErr = decodeErr
		}
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		c.logger.Error("读取制品元数据失败", zap.String("artifactId", artifactID), zap.Error(callErr))
		return nil, callErr
	}
	return meta, nil
}

// DeleteArtifact removes serviceName's config artifact entirely.
func (c *Client) DeleteArtifact(ctx context.Context, serviceName string) bool {
	artifactID := model.ArtifactID(serviceName, "")

	var ok bool
	err := c.pool.Submit(ctx, func() {
		url := fmt.Sprintf("%s/groups/%s/artifacts/%s", c.baseURL, c.groupID, artifactID)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if reqErr != nil {
			return
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			c.logger.Error("删除制品失败", zap.String("artifactId", artifactID), zap.Error(doErr))
			return
		}
		defer resp.Body.Close()
		ok = resp.StatusCode < 300
	})
	if err != nil {
		return false
	}
	return ok
}

// ListArtifacts lists up to limit artifact ids in the default group, used
// for reconciliation.
func (c *Client) ListArtifacts(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}

	var ids []string
	var callErr error
	err := c.pool.Submit(ctx, func() {
		url := fmt.Sprintf("%s/groups/%s/artifacts?limit=%d", c.baseURL, c.groupID, limit)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			callErr = reqErr
			return
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			callErr = doErr
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			callErr = fmt.Errorf("artifact registry返回状态码 %d", resp.StatusCode)
			return
		}

		var decoded struct {
			Artifacts []struct {
				ArtifactID string `json:"artifactId"`
			} `json:"artifacts"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
			callErr = decodeErr
			return
		}
		for _, a := range decoded.Artifacts {
			ids = append(ids, a.ArtifactID)
		}
	})
	if err != nil {
		return nil, err
	}
	if callErr != nil {
		c.logger.Error("列出制品失败", zap.Error(callErr))
		return nil, callErr
	}
	return ids, nil
}

// IsHealthy performs a readiness probe against the registry's system-info
// endpoint. Any failure is treated as unhealthy.
func (c *Client) IsHealthy(ctx context.Context) bool {
	var ok bool
	err := c.pool.Submit(ctx, func() {
		url := fmt.Sprintf("%s/system/info", c.baseURL)
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return
		}
		resp, doErr := c.http.Do(req)
		if doErr != nil {
			c.logger.Error("artifact registry健康探测失败", zap.Error(doErr))
			return
		}
		defer resp.Body.Close()
		ok = resp.StatusCode < 300
	})
	if err != nil {
		return false
	}
	return ok
}
