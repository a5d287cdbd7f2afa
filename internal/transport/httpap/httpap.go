// Package httpap is the HTTP access point adapter.
package httpap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/peppolway/internal/config"
	"github.com/smallbiznis/peppolway/internal/environment"
	"github.com/smallbiznis/peppolway/internal/transport"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Adapter struct {
	cfg    config.ExchangeConfig
	log    *zap.Logger
	client *http.Client
}

func New(cfg config.ExchangeConfig, log *zap.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		log:    log.Named("transport.httpap"),
		client: &http.Client{Timeout: defaultTimeout},
	}
}

type sendPayload struct {
	DocumentID     string `json:"document_id"`
	DocumentType   string `json:"document_type"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	PayloadBase64  string `json:"payload"`
	PayloadVariant string `json:"payload_variant"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func (a *Adapter) Send(ctx context.Context, env environment.Environment, req transport.SendRequest) (transport.SendResult, error) {
	endpoint, err := a.endpoint(env)
	if err != nil {
		return transport.SendResult{}, err
	}

	body, err := json.Marshal(sendPayload{
		DocumentID:     req.DocumentID,
		DocumentType:   req.DocumentType,
		SenderID:       req.SenderIdentifier.String(),
		ReceiverID:     req.ReceiverIdentifier.String(),
		PayloadBase64:  base64.StdEncoding.EncodeToString(req.Payload),
		PayloadVariant: "ubl-2.1",
	})
	if err != nil {
		return transport.SendResult{}, err
	}

	resp, err := a.do(ctx, env, http.MethodPost, endpoint.Endpoint+"/v1/messages", body)
	if err != nil {
		return transport.SendResult{}, transport.Transient(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transport.SendResult{}, transport.Transient(err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return transport.SendResult{}, transport.Transient(fmt.Errorf("access point returned %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		var parsed sendResponse
		_ = json.Unmarshal(raw, &parsed)
		code := parsed.Code
		if code == "" {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return transport.SendResult{}, transport.Permanent(code, parsed.Detail)
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return transport.SendResult{}, transport.Transient(err)
	}
	if strings.TrimSpace(parsed.MessageID) == "" {
		return transport.SendResult{}, transport.Permanent("missing_message_id", "access point accepted without a message id")
	}

	return transport.SendResult{ProviderMessageID: parsed.MessageID}, nil
}

func (a *Adapter) PollStatus(ctx context.Context, env environment.Environment, providerMessageID string) (transport.StatusResult, error) {
	endpoint, err := a.endpoint(env)
	if err != nil {
		return transport.StatusResult{}, err
	}

	resp, err := a.do(ctx, env, http.MethodGet, endpoint.Endpoint+"/v1/messages/"+providerMessageID+"/status", nil)
	if err != nil {
		return transport.StatusResult{}, transport.Transient(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transport.StatusResult{}, transport.Transient(err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return transport.StatusResult{}, transport.Transient(fmt.Errorf("access point returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return transport.StatusResult{}, transport.Permanent("unknown_message", "provider message id not found")
	case resp.StatusCode >= http.StatusBadRequest:
		return transport.StatusResult{}, transport.Permanent(fmt.Sprintf("http_%d", resp.StatusCode), string(raw))
	}

	var parsed statusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return transport.StatusResult{}, transport.Transient(err)
	}

	status, err := mapStatus(parsed.Status)
	if err != nil {
		return transport.StatusResult{}, err
	}
	return transport.StatusResult{Status: status, Detail: parsed.Detail}, nil
}

func (a *Adapter) endpoint(env environment.Environment) (config.AccessPointConfig, error) {
	switch env {
	case environment.Sandbox:
		return a.cfg.Sandbox, nil
	case environment.Production:
		if strings.TrimSpace(a.cfg.Production.Endpoint) == "" {
			return config.AccessPointConfig{}, transport.Permanent("not_configured", "production access point endpoint is not configured")
		}
		return a.cfg.Production, nil
	default:
		return config.AccessPointConfig{}, errors.New("unknown_environment")
	}
}

func (a *Adapter) do(ctx context.Context, env environment.Environment, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	endpoint, _ := a.endpoint(env)
	if endpoint.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	return a.client.Do(req)
}

func mapStatus(raw string) (transport.DeliveryStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "in_transit", "sent":
		return transport.StatusInTransit, nil
	case "delivered":
		return transport.StatusDelivered, nil
	case "accepted":
		return transport.StatusAccepted, nil
	case "rejected":
		return transport.StatusRejected, nil
	case "failed":
		return transport.StatusFailed, nil
	default:
		return "", transport.Permanent("unknown_status", fmt.Sprintf("provider status %q", raw))
	}
}
