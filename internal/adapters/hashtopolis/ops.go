package hashtopolis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// Thin semantic wrappers over Request with the coordinator's token-in-body
// /api payload shapes pinned. Each fails with the Request taxonomy, plus
// ProtocolError when a required response field is absent from an otherwise
// successful reply.

func (c *Client) CreateHashlist(ctx context.Context, name string, algorithm int) (int64, error) {
	payload := map[string]any{"name": name, "algorithm": algorithm}
	raw, err := c.Request(ctx, http.MethodPost, "hashlist/new", payload, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Success    bool   `json:"success"`
		HashlistID *int64 `json:"hashlist_id"`
		Error      string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("decode hashlist/new response: %w", err)
	}
	if !resp.Success {
		return 0, fmt.Errorf("coordinator rejected hashlist creation: %s", resp.Error)
	}
	if resp.HashlistID == nil {
		return 0, &domain.ProtocolError{Endpoint: "hashlist/new", Field: "hashlist_id"}
	}
	return *resp.HashlistID, nil
}

func (c *Client) UploadHashes(ctx context.Context, hashlistID int64, hashes []string) error {
	payload := map[string]any{"hashlist_id": hashlistID, "hashes": hashes}
	raw, err := c.Request(ctx, http.MethodPost, "hashlist/upload", payload, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode hashlist/upload response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("coordinator rejected hash upload: %s", resp.Error)
	}
	return nil
}

func (c *Client) CreateTask(ctx context.Context, name string, hashlistID int64, wordlist string, rules string) (int64, error) {
	payload := map[string]any{
		"name":        name,
		"hashlist_id": hashlistID,
		"wordlist":    wordlist,
		"rules":       rules,
	}
	raw, err := c.Request(ctx, http.MethodPost, "task/new", payload, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Success bool   `json:"success"`
		TaskID  *int64 `json:"task_id"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("decode task/new response: %w", err)
	}
	if !resp.Success {
		return 0, fmt.Errorf("coordinator rejected task creation: %s", resp.Error)
	}
	if resp.TaskID == nil {
		return 0, &domain.ProtocolError{Endpoint: "task/new", Field: "task_id"}
	}
	return *resp.TaskID, nil
}

func (c *Client) GetTaskStatus(ctx context.Context, taskID int64) (domain.TaskStatus, error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("task/status/%d", taskID), nil, nil)
	if err != nil {
		return domain.TaskStatus{}, err
	}

	var resp struct {
		Success  bool    `json:"success"`
		Status   *string `json:"status"`
		Progress float64 `json:"progress"`
		Cracked  int     `json:"cracked"`
		Speed    int64   `json:"speed"`
		Error    string  `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.TaskStatus{}, fmt.Errorf("decode task/status response: %w", err)
	}
	if !resp.Success {
		return domain.TaskStatus{}, fmt.Errorf("coordinator rejected status query: %s", resp.Error)
	}
	if resp.Status == nil {
		return domain.TaskStatus{}, &domain.ProtocolError{Endpoint: "task/status", Field: "status"}
	}
	return domain.TaskStatus{
		TaskID:   taskID,
		Status:   *resp.Status,
		Progress: resp.Progress,
		Cracked:  resp.Cracked,
		Speed:    resp.Speed,
	}, nil
}

func (c *Client) GetCrackedHashes(ctx context.Context, taskID int64) ([]domain.CrackedHash, error) {
	raw, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("task/cracked/%d", taskID), nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool                 `json:"success"`
		Hashes  []domain.CrackedHash `json:"hashes"`
		Error   string               `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode task/cracked response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("coordinator rejected results query: %s", resp.Error)
	}
	// An absent or empty hashes list is a valid "nothing recovered" reply.
	return resp.Hashes, nil
}

func (c *Client) StopTask(ctx context.Context, taskID int64) error {
	payload := map[string]any{"task_id": taskID}
	raw, err := c.Request(ctx, http.MethodPost, "task/stop", payload, nil)
	if err != nil {
		return err
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode task/stop response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("coordinator declined stop request: %s", resp.Error)
	}
	return nil
}

// ListWordlists fetches the file catalog and filters it client-side to
// wordlist-type entries, preserving catalog order.
func (c *Client) ListWordlists(ctx context.Context) ([]domain.Wordlist, error) {
	raw, err := c.Request(ctx, http.MethodGet, "files", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool `json:"success"`
		Files   []struct {
			FileID    int64  `json:"file_id"`
			Filename  string `json:"filename"`
			LineCount int64  `json:"line_count"`
			Size      int64  `json:"size"`
			FileType  string `json:"file_type"`
		} `json:"files"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode files response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("coordinator rejected file catalog query: %s", resp.Error)
	}

	wordlists := make([]domain.Wordlist, 0, len(resp.Files))
	for _, f := range resp.Files {
		if f.FileType != "wordlist" {
			continue
		}
		wordlists = append(wordlists, domain.Wordlist{
			ID:        f.FileID,
			Name:      f.Filename,
			LineCount: f.LineCount,
			Size:      f.Size,
		})
	}
	return wordlists, nil
}

func (c *Client) CreateVoucher(ctx context.Context) (string, error) {
	raw, err := c.Request(ctx, http.MethodPost, "setup/generateAgentToken", map[string]any{}, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode setup/generateAgentToken response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("coordinator rejected voucher request: %s", resp.Error)
	}
	if resp.Token == "" {
		return "", &domain.ProtocolError{Endpoint: "setup/generateAgentToken", Field: "token"}
	}
	return resp.Token, nil
}
