// Package sweeper reclaims store space by deleting partitions that fell out
// of the retention window.
package sweeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
	"depthflow/internal/partition"
	"depthflow/logger"
	"depthflow/models"
)

// Sweeper deletes partitions older than the retention cutoff through the
// store's session-based console API: login establishes a cookie session, a
// cross-site-request token is fetched once, and every delete carries that
// token. The whole sweep runs sequentially on one session.
type Sweeper struct {
	config *appconfig.Config
	log    *logger.Log
	now    func() time.Time
}

// NewSweeper builds a sweeper from the sweep section of the config.
func NewSweeper(cfg *appconfig.Config) *Sweeper {
	return &Sweeper{
		config: cfg,
		log:    logger.GetLogger(),
		now:    time.Now,
	}
}

// session is the acquired console session: a cookie-carrying client plus
// the xsrf token bound to it. Released via Close on every exit path.
type session struct {
	client *http.Client
	token  string
}

func (s *session) Close() {
	// Dropping the jar invalidates the session client-side; the server
	// expires the cookie on its own TTL.
	s.client.Jar = nil
	s.token = ""
}

type xsrfData struct {
	Token string `json:"xsrf-token"`
	TTL   int64  `json:"ttl"`
}

// Sweep deletes the partition at the retention cutoff day for every symbol.
// A failed login aborts the whole sweep; a failed delete for one symbol is
// recorded and does not stop the remaining symbols.
func (s *Sweeper) Sweep(ctx context.Context, symbols []string, retentionDays int) (*models.Report, error) {
	if retentionDays <= 0 {
		retentionDays = appconfig.DefaultRetentionDays
	}

	log := s.log.WithComponent("sweeper").WithFields(logger.Fields{
		"symbols":        len(symbols),
		"retention_days": retentionDays,
	})
	log.Info("starting sweep")

	sess, err := s.login(ctx)
	if err != nil {
		log.WithError(err).Error("login failed, aborting sweep")
		return nil, err
	}
	defer sess.Close()

	cutoff := partition.CutoffUTC(s.now(), retentionDays)
	report := &models.Report{RunID: uuid.New().String()}

	for _, symbol := range symbols {
		key, err := partition.NewKey(symbol, cutoff)
		if err != nil {
			report.Add(models.ReportEntry{Symbol: symbol, Operation: "sweep", OK: false, Reason: err.Error()})
			log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("skipping invalid symbol")
			continue
		}

		if err := s.deletePartition(ctx, sess, key); err != nil {
			report.Add(models.ReportEntry{Symbol: symbol, Partition: key.Class(), Operation: "sweep", OK: false, Reason: err.Error()})
			log.WithError(err).WithFields(logger.Fields{"partition": key.Class()}).Warn("delete failed")
			continue
		}

		report.Add(models.ReportEntry{Symbol: symbol, Partition: key.Class(), Operation: "sweep", OK: true})
		logger.IncrementStoreDelete()
		log.WithFields(logger.Fields{"partition": key.Class()}).Info("partition deleted")
	}

	log.WithFields(logger.Fields{"failed": len(report.Failed())}).Info("sweep finished")
	return report, nil
}

// login exchanges the configured credentials for a cookie session and
// fetches the xsrf token bound to it.
func (s *Sweeper) login(ctx context.Context) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: s.config.Sweep.Timeout,
	}

	body, err := json.Marshal(map[string]string{
		"email":    s.config.Sweep.Email,
		"password": s.config.Sweep.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Sweep.LoginURI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &errs.TransientError{Op: "login", Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &errs.AuthError{Op: "login", Status: resp.StatusCode}
	}

	token, err := s.fetchToken(ctx, client)
	if err != nil {
		return nil, err
	}

	s.log.WithComponent("sweeper").Debug("session established")
	return &session{client: client, token: token}, nil
}

func (s *Sweeper) fetchToken(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.Sweep.XSRFURI, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &errs.TransientError{Op: "xsrf-token", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &errs.AuthError{Op: "xsrf-token", Status: resp.StatusCode}
	}

	var data xsrfData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode xsrf token: %w", err)
	}
	if data.Token == "" {
		return "", &errs.AuthError{Op: "xsrf-token", Status: resp.StatusCode}
	}

	return data.Token, nil
}

func (s *Sweeper) deletePartition(ctx context.Context, sess *session, key partition.Key) error {
	uri := fmt.Sprintf("%s/%s", strings.TrimSuffix(s.config.Sweep.DeleteURI, "/"), key.Class())

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-xsrf-token", sess.token)

	resp, err := sess.client.Do(req)
	if err != nil {
		return &errs.TransientError{Op: "delete", Err: err}
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.AuthError{Op: "delete", Status: resp.StatusCode}
	case resp.StatusCode >= 300:
		return fmt.Errorf("delete %s: status %d: %s", key.Class(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
