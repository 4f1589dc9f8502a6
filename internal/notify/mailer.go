package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/crypto-transfer-ledger/internal/domain"
	"github.com/josh-kwaku/crypto-transfer-ledger/internal/logging"
)

// MailConfig describes a template mail API in the ZeptoMail style: the
// provider renders the template identified by a key using merge variables.
type MailConfig struct {
	APIURL      string
	APIToken    string
	FromAddress string
	FromName    string
	Timeout     time.Duration
	// TemplateKeys maps each template to the provider's template key. A
	// template without an entry is sent under its own name.
	TemplateKeys map[domain.Template]string
}

type MailClient struct {
	cfg        MailConfig
	httpClient *http.Client
}

func NewMailClient(cfg MailConfig) *MailClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MailClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type mailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type mailRecipient struct {
	EmailAddress mailAddress `json:"email_address"`
}

type mailPayload struct {
	TemplateKey string            `json:"mail_template_key"`
	From        mailAddress       `json:"from"`
	To          []mailRecipient   `json:"to"`
	MergeInfo   map[string]string `json:"merge_info"`
}

func (c *MailClient) templateKey(tmpl domain.Template) string {
	if key, ok := c.cfg.TemplateKeys[tmpl]; ok && key != "" {
		return key
	}
	return string(tmpl)
}

func (c *MailClient) Send(ctx context.Context, to string, tmpl domain.Template, vars map[string]string) error {
	log := logging.FromContext(ctx)

	name := vars["userName"]
	if name == "" {
		name = "User"
	}
	payload := mailPayload{
		TemplateKey: c.templateKey(tmpl),
		From:        mailAddress{Address: c.cfg.FromAddress, Name: c.cfg.FromName},
		To:          []mailRecipient{{EmailAddress: mailAddress{Address: to, Name: name}}},
		MergeInfo:   vars,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Send: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Zoho-enczapikey "+c.cfg.APIToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("mail api response received",
		"template", tmpl,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Send: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
