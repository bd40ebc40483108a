package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/timepulse/timepulse-api/internal/config"
)

var ErrFunctionsNotConfigured = errors.New("functions endpoint is not configured")

// FunctionsNotifier calls the hosted bib-exchange-alert function for each alert.
type FunctionsNotifier struct {
	cfg    config.FunctionsConfig
	client *http.Client
}

func NewFunctionsNotifier(cfg config.FunctionsConfig) *FunctionsNotifier {
	return &FunctionsNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (n *FunctionsNotifier) IsConfigured() bool {
	return n.cfg.BaseURL != ""
}

func (n *FunctionsNotifier) NotifyBibAvailable(ctx context.Context, alert BibAlert) error {
	return n.invoke(ctx, "bib-exchange-alert", alert)
}

func (n *FunctionsNotifier) invoke(ctx context.Context, name string, payload any) error {
	if !n.IsConfigured() {
		return ErrFunctionsNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", name, err)
	}

	url := strings.TrimRight(n.cfg.BaseURL, "/") + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.ServiceToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.ServiceToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
