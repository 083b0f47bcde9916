package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/metrics"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/smartcharging"
)

// DefaultSolarURL is the Fronius Solar API realtime endpoint of the reference installation.
const DefaultSolarURL = "http://10.1.1.105:8025/solar_api/v1/GetInverterRealtimeData.cgi?Scope=System"

// FroniusClient reads instantaneous AC power from a Fronius inverter.
type FroniusClient struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

type froniusResponse struct {
	Body struct {
		Data struct {
			PAC struct {
				Unit   string              `json:"Unit"`
				Values map[string]*float64 `json:"Values"`
			} `json:"PAC"`
		} `json:"Data"`
	} `json:"Body"`
}

// NewFroniusClient returns client wrapper.
func NewFroniusClient(url string, timeout time.Duration, logger *zap.Logger) *FroniusClient {
	if url == "" {
		url = DefaultSolarURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FroniusClient{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ReadPower fetches the system-wide PAC value. A missing value reads as 0 in the
// reported unit, so an idle inverter drops the cap to the floor.
func (c *FroniusClient) ReadPower(ctx context.Context) (smartcharging.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return smartcharging.Reading{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("solar api request failed", zap.Error(err))
		return smartcharging.Reading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return smartcharging.Reading{}, fmt.Errorf("solar api returned status %d", resp.StatusCode)
	}

	var body froniusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return smartcharging.Reading{}, fmt.Errorf("decode solar api response: %w", err)
	}

	reading := smartcharging.Reading{Unit: body.Body.Data.PAC.Unit}
	if value := body.Body.Data.PAC.Values["1"]; value != nil {
		reading.Value = *value
	}

	c.logger.Debug("solar power read", zap.Float64("power", reading.Value), zap.String("unit", reading.Unit))
	return reading, nil
}

// SharedReader lets every session use one inverter request at a time and reuse a
// fresh reading for ttl.
type SharedReader struct {
	reader smartcharging.PowerReader
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	last    smartcharging.Reading
	readAt  time.Time
	hasLast bool
}

// NewSharedReader wraps reader. A zero ttl disables caching but still coalesces
// concurrent reads.
func NewSharedReader(reader smartcharging.PowerReader, ttl time.Duration) *SharedReader {
	return &SharedReader{reader: reader, ttl: ttl, now: time.Now}
}

// ReadPower implements smartcharging.PowerReader.
func (s *SharedReader) ReadPower(ctx context.Context) (smartcharging.Reading, error) {
	s.mu.Lock()
	if s.hasLast && s.now().Sub(s.readAt) < s.ttl {
		reading := s.last
		s.mu.Unlock()
		return reading, nil
	}
	s.mu.Unlock()

	result := s.group.DoChan("power", func() (interface{}, error) {
		// Shared by every waiter, so it must not inherit one caller's cancellation.
		reading, err := s.reader.ReadPower(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.last = reading
		s.readAt = s.now()
		s.hasLast = true
		s.mu.Unlock()
		if reading.Unit == smartcharging.DefaultUnit {
			metrics.ObserveSolarPower(reading.Value)
		}
		return reading, nil
	})

	select {
	case <-ctx.Done():
		return smartcharging.Reading{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return smartcharging.Reading{}, res.Err
		}
		return res.Val.(smartcharging.Reading), nil
	}
}
